package poller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/aman-zulfiqar/spl-token-manager/internal/models"
	"github.com/aman-zulfiqar/spl-token-manager/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

const (
	StatusSuccess = "Success"
	StatusFailed  = "Failed"
	StatusUnknown = "Unknown"

	TypeCreateToken = "Create Token"
	TypeMintToken   = "Mint Token"
	TypeTransfer    = "Transfer"
	TypeUnknown     = "Unknown"
)

// HistorySource is the part of the connection history reads use.
type HistorySource interface {
	GetSignaturesForAddress(ctx context.Context, address string, opts map[string]interface{}) (*rpc.SignaturesResponse, error)
	GetTransaction(ctx context.Context, signature string) (*rpc.TransactionResponse, error)
}

// HistoryReader lists recent transactions of a wallet.
type HistoryReader struct {
	source  HistorySource
	cluster string
	logger  *logrus.Logger
}

func NewHistoryReader(source HistorySource, cluster string, logger *logrus.Logger) *HistoryReader {
	if logger == nil {
		logger = logrus.New()
	}
	return &HistoryReader{source: source, cluster: cluster, logger: logger}
}

// Recent returns the owner's latest transactions, newest first. Details are
// fetched concurrently; an entry whose details cannot be fetched is kept
// with status and type Unknown.
func (r *HistoryReader) Recent(ctx context.Context, owner solana.PublicKey, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}

	sigResp, err := r.source.GetSignaturesForAddress(ctx, owner.String(), map[string]interface{}{
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get signatures: %w", err)
	}

	sigs := sigResp.Result
	if len(sigs) > limit {
		sigs = sigs[:limit]
	}

	entries := make([]models.HistoryEntry, len(sigs))
	var wg sync.WaitGroup
	for i, sig := range sigs {
		entries[i] = models.HistoryEntry{
			Signature:      sig.Signature,
			ShortSignature: ShortSignature(sig.Signature),
			Slot:           sig.Slot,
			Status:         StatusSuccess,
			Type:           TypeUnknown,
			ExplorerURL:    constants.ExplorerTxURL(sig.Signature, r.cluster),
		}
		if sig.Err != nil {
			entries[i].Status = StatusFailed
		}
		if sig.BlockTime > 0 {
			bt := time.Unix(sig.BlockTime, 0).UTC()
			entries[i].BlockTime = &bt
		}

		wg.Add(1)
		go func(e *models.HistoryEntry) {
			defer wg.Done()
			r.fillDetails(ctx, e)
		}(&entries[i])
	}
	wg.Wait()

	return entries, nil
}

func (r *HistoryReader) fillDetails(ctx context.Context, e *models.HistoryEntry) {
	txResp, err := r.source.GetTransaction(ctx, e.Signature)
	if err != nil {
		r.logger.WithError(err).WithField("signature", e.ShortSignature).Debug("failed to fetch transaction details")
		e.Status = StatusUnknown
		e.Type = TypeUnknown
		return
	}
	// a transaction the node no longer has keeps the status of its
	// signature record
	if txResp == nil || txResp.Result == nil {
		e.Type = TypeUnknown
		return
	}

	res := txResp.Result
	if e.BlockTime == nil && res.BlockTime > 0 {
		bt := time.Unix(res.BlockTime, 0).UTC()
		e.BlockTime = &bt
	}
	if res.Meta != nil {
		e.Type = ClassifyLogs(res.Meta.LogMessages)
	}
}

// ClassifyLogs guesses the kind of a token transaction from its program
// logs. It is a heuristic and may be wrong for transactions that do more
// than one thing.
func ClassifyLogs(logs []string) string {
	has := func(substr string) bool {
		for _, l := range logs {
			if strings.Contains(l, substr) {
				return true
			}
		}
		return false
	}

	switch {
	case has(constants.LogInitializeMint):
		return TypeCreateToken
	case has(constants.LogMintTo):
		return TypeMintToken
	case has(constants.LogTransfer), has(constants.LogTransferLower):
		return TypeTransfer
	default:
		return TypeUnknown
	}
}

// ShortSignature abbreviates a signature as its first 6 and last 4 characters.
func ShortSignature(sig string) string {
	if len(sig) <= 10 {
		return sig
	}
	return sig[:6] + "..." + sig[len(sig)-4:]
}
