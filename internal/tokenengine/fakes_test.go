package tokenengine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aman-zulfiqar/spl-token-manager/internal/models"
	"github.com/aman-zulfiqar/spl-token-manager/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeLedger struct {
	mu        sync.Mutex
	existing  map[solana.PublicKey]bool
	existsErr error
	rent      uint64
	rentErr   error
	rentSize  uint64

	existsCalls int
	rentCalls   int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{existing: map[solana.PublicKey]bool{}, rent: 1461600}
}

func (f *fakeLedger) AccountExists(_ context.Context, pk solana.PublicKey) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[pk], nil
}

func (f *fakeLedger) GetMinimumBalanceForRentExemption(_ context.Context, size uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rentCalls++
	f.rentSize = size
	if f.rentErr != nil {
		return 0, f.rentErr
	}
	return f.rent, nil
}

func (f *fakeLedger) markExists(pk solana.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existing[pk] = true
}

func (f *fakeLedger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existsCalls + f.rentCalls
}

type fakeNetwork struct {
	mu           sync.Mutex
	blockhashErr error
	confirmErr   error
	hang         bool // ConfirmTransaction waits for its deadline

	blockhashCalls int
	confirmCalls   int
}

func (f *fakeNetwork) GetLatestBlockhash(context.Context, string) (solana.Hash, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockhashCalls++
	if f.blockhashErr != nil {
		return solana.Hash{}, 0, f.blockhashErr
	}
	return solana.Hash{42}, 100, nil
}

func (f *fakeNetwork) ConfirmTransaction(ctx context.Context, _ string, _ string, timeout time.Duration) error {
	f.mu.Lock()
	f.confirmCalls++
	hang, err := f.hang, f.confirmErr
	f.mu.Unlock()

	if hang {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", rpc.ErrConfirmTimeout, ctx.Err())
		case <-time.After(timeout):
			return rpc.ErrConfirmTimeout
		}
	}
	return err
}

func (f *fakeNetwork) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockhashCalls + f.confirmCalls
}

// fakeSigner records submissions. errOn maps a 1-based call number to the
// error that call returns.
type fakeSigner struct {
	mu     sync.Mutex
	pub    solana.PublicKey
	errOn  map[int]error
	calls  int
	extras [][]solana.PrivateKey
	txs    []*solana.Transaction

	started chan struct{}
	release chan struct{}
}

func newFakeSigner() *fakeSigner {
	return &fakeSigner{pub: solana.NewWallet().PublicKey(), errOn: map[int]error{}}
}

func (f *fakeSigner) PublicKey() solana.PublicKey { return f.pub }

func (f *fakeSigner) SignAndSend(_ context.Context, tx *solana.Transaction, extra []solana.PrivateKey) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.extras = append(f.extras, extra)
	f.txs = append(f.txs, tx)
	err := f.errOn[n]
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sig%d", n), nil
}

func (f *fakeSigner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeJournal struct {
	mu     sync.Mutex
	recent []*models.OperationEvent
	pubs   int
	stored []*models.OperationEvent
}

func (f *fakeJournal) AddRecentOperation(_ context.Context, op *models.OperationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recent = append(f.recent, op)
	return nil
}

func (f *fakeJournal) GetRecentOperations(context.Context, int64) ([]*models.OperationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recent, nil
}

func (f *fakeJournal) PublishOperation(context.Context, *models.OperationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs++
	return nil
}

func (f *fakeJournal) SubscribeOperations(context.Context) (<-chan *models.OperationEvent, error) {
	return nil, fmt.Errorf("not supported")
}

func (f *fakeJournal) InsertOperation(_ context.Context, op *models.OperationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, op)
	return nil
}

func (f *fakeJournal) Ping(context.Context) error { return nil }
func (f *fakeJournal) Close() error               { return nil }

func (f *fakeJournal) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.recent))
	for _, ev := range f.recent {
		out = append(out, ev.Kind)
	}
	return out
}

type fakeFlags struct {
	values map[string]bool
	err    error
}

func (f *fakeFlags) IsEnabled(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	v, ok := f.values[key]
	if !ok {
		return true, nil
	}
	return v, nil
}
