package tokenengine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aman-zulfiqar/spl-token-manager/internal/wallet"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planFor(t *testing.T, signer wallet.Signer, req Request) *InstructionPlan {
	t.Helper()
	b := NewBuilder(newFakeLedger(), quietLogger())
	plan, err := b.Build(context.Background(), req.withRequester(signer.PublicKey()))
	require.NoError(t, err)
	return plan
}

func newTestExecutor(network Network) *Executor {
	return NewExecutor(network, ExecutorConfig{
		ConfirmTimeout: 50 * time.Millisecond,
		Cluster:        "devnet",
		Logger:         quietLogger(),
	})
}

func TestSubmit_Confirmed(t *testing.T) {
	signer := newFakeSigner()
	network := &fakeNetwork{}
	ex := newTestExecutor(network)

	plan := planFor(t, signer, CreateMintRequest{Decimals: 9})
	out, err := ex.Submit(context.Background(), plan, signer)
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, out.Status)
	assert.Equal(t, "sig1", out.Signature)
	assert.Equal(t, "https://explorer.solana.com/tx/sig1?cluster=devnet", out.ExplorerURL)
	assert.Equal(t, plan.Mint.String(), out.Mint)
	assert.Equal(t, signer.PublicKey().String(), out.Owner)
	assert.NotNil(t, out.ResolvedAt)
	assert.Empty(t, out.ErrorKind)

	require.Len(t, signer.extras, 1)
	require.Len(t, signer.extras[0], 1)
	assert.Equal(t, plan.Mint, signer.extras[0][0].PublicKey())

	tx := signer.txs[0]
	assert.Equal(t, solana.Hash{42}, tx.Message.RecentBlockhash)
	assert.Equal(t, signer.PublicKey(), tx.Message.AccountKeys[0])
}

func TestSubmit_DisconnectedWallet(t *testing.T) {
	signer := newFakeSigner()
	network := &fakeNetwork{}
	ex := newTestExecutor(network)
	plan := planFor(t, signer, CreateMintRequest{Decimals: 9})

	out, err := ex.Submit(context.Background(), plan, wallet.Disconnected{})
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, ErrorKindInvalidRequest, out.ErrorKind)
	assert.Contains(t, out.Reason, "wallet not connected")
	assert.Equal(t, 0, network.calls())
}

func TestSubmit_PayerMustBeSigner(t *testing.T) {
	signer := newFakeSigner()
	other := newFakeSigner()
	ex := newTestExecutor(&fakeNetwork{})
	plan := planFor(t, other, CreateMintRequest{Decimals: 9})

	out, err := ex.Submit(context.Background(), plan, signer)
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, 0, signer.callCount())
}

func TestSubmit_NilPlan(t *testing.T) {
	out, err := newTestExecutor(&fakeNetwork{}).Submit(context.Background(), nil, newFakeSigner())
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, StatusFailed, out.Status)
}

func TestSubmit_BlockhashFailure(t *testing.T) {
	signer := newFakeSigner()
	ex := newTestExecutor(&fakeNetwork{blockhashErr: errors.New("dial tcp: connection refused")})
	plan := planFor(t, signer, CreateMintRequest{Decimals: 9})

	out, err := ex.Submit(context.Background(), plan, signer)
	require.ErrorIs(t, err, ErrNetworkFailure)
	assert.Equal(t, ErrorKindNetworkFailure, out.ErrorKind)
	assert.Contains(t, out.Reason, "connection refused")
	assert.Equal(t, 0, signer.callCount())
}

func TestSubmit_SignerRejected(t *testing.T) {
	signer := newFakeSigner()
	signer.errOn[1] = fmt.Errorf("%w: user declined", wallet.ErrSigningFailed)
	network := &fakeNetwork{}
	ex := newTestExecutor(network)
	plan := planFor(t, signer, CreateMintRequest{Decimals: 9})

	out, err := ex.Submit(context.Background(), plan, signer)
	require.ErrorIs(t, err, ErrSignerRejected)
	assert.ErrorIs(t, err, wallet.ErrSigningFailed)
	assert.Equal(t, ErrorKindSignerRejected, out.ErrorKind)
	assert.Empty(t, out.Signature)

	network.mu.Lock()
	defer network.mu.Unlock()
	assert.Equal(t, 0, network.confirmCalls)
}

func TestSubmit_AuthorityMismatchHint(t *testing.T) {
	signer := newFakeSigner()
	signer.errOn[1] = errors.New("transaction simulation failed: Error processing Instruction 0: custom program error: 0x4")
	ex := newTestExecutor(&fakeNetwork{})
	plan := planFor(t, signer, MintToRequest{
		MintAddress: solana.NewWallet().PublicKey().String(),
		Amount:      "10",
		Decimals:    9,
	})

	out, err := ex.Submit(context.Background(), plan, signer)
	require.ErrorIs(t, err, ErrSignerRejected)
	assert.Equal(t, ErrorKindSignerRejected, out.ErrorKind)
	assert.Contains(t, out.Hint, "mint authority")
}

func TestSubmit_ConfirmationTimeoutIsBounded(t *testing.T) {
	signer := newFakeSigner()
	ex := newTestExecutor(&fakeNetwork{hang: true})
	plan := planFor(t, signer, CreateMintRequest{Decimals: 9})

	start := time.Now()
	out, err := ex.Submit(context.Background(), plan, signer)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrNetworkFailure)
	assert.False(t, out.Pending())
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, "sig1", out.Signature, "signature is kept for manual follow-up")
	assert.Less(t, elapsed, 2*time.Second)
}

func TestSubmit_ConfirmationLedgerError(t *testing.T) {
	signer := newFakeSigner()
	ex := newTestExecutor(&fakeNetwork{confirmErr: errors.New("transaction failed: custom program error: 0x4")})
	plan := planFor(t, signer, TransferRequest{
		MintAddress:    solana.NewWallet().PublicKey().String(),
		RecipientOwner: solana.NewWallet().PublicKey().String(),
		Amount:         "1",
		Decimals:       9,
	})

	out, err := ex.Submit(context.Background(), plan, signer)
	require.ErrorIs(t, err, ErrSignerRejected)
	assert.Contains(t, out.Hint, "source token account")
}
