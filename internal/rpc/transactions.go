package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

var (
	// ErrConfirmTimeout is returned when a signature does not reach the
	// requested commitment before the deadline.
	ErrConfirmTimeout = errors.New("transaction confirmation timeout")
	// ErrTransactionFailed is returned when the ledger reports an error for a
	// processed transaction.
	ErrTransactionFailed = errors.New("transaction failed")
)

// GetSignaturesForAddress fetches transaction signatures for an address, newest first
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, opts map[string]interface{}) (*SignaturesResponse, error) {
	if opts == nil {
		opts = map[string]interface{}{}
	}
	if _, ok := opts["commitment"]; !ok {
		opts["commitment"] = c.commitment
	}
	params := []interface{}{address, opts}

	var result SignaturesResponse
	if err := c.Call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}

	if result.Error != nil {
		return nil, result.Error
	}

	return &result, nil
}

// GetTransaction fetches full transaction details
func (c *Client) GetTransaction(ctx context.Context, signature string) (*TransactionResponse, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     c.commitment,
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result TransactionResponse
	if err := c.Call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	if result.Error != nil {
		return nil, result.Error
	}

	return &result, nil
}

// GetLatestBlockhash fetches the most recent blockhash with commitment level
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment string) (solana.Hash, uint64, error) {
	var resp struct {
		Result struct {
			Value struct {
				Blockhash            string `json:"blockhash"`
				LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
			} `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		map[string]any{"commitment": c.commitmentOr(commitment)},
	}

	if err := c.Call(ctx, "getLatestBlockhash", params, &resp); err != nil {
		return solana.Hash{}, 0, fmt.Errorf("getLatestBlockhash failed: %w", err)
	}

	if resp.Error != nil {
		return solana.Hash{}, 0, fmt.Errorf("getLatestBlockhash error: %w", resp.Error)
	}

	hash, err := solana.HashFromBase58(resp.Result.Value.Blockhash)
	if err != nil {
		return solana.Hash{}, 0, fmt.Errorf("invalid blockhash format: %w", err)
	}

	return hash, resp.Result.Value.LastValidBlockHeight, nil
}

// SendTransaction submits a signed transaction. It is never retried by the
// client: a lost response does not mean the transaction was not accepted.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction, opts *SendOptions) (string, error) {
	if opts == nil {
		defaultOpts := DefaultSendOptions()
		opts = &defaultOpts
	}

	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	config := map[string]any{
		"encoding":            "base64",
		"skipPreflight":       opts.SkipPreflight,
		"preflightCommitment": opts.PreflightCommitment,
	}
	if opts.MaxRetries != nil {
		config["maxRetries"] = *opts.MaxRetries
	}

	params := []any{
		base64.StdEncoding.EncodeToString(txBytes),
		config,
	}

	var resp struct {
		Result string    `json:"result"`
		Error  *RPCError `json:"error"`
	}

	if err := c.CallOnce(ctx, "sendTransaction", params, &resp); err != nil {
		return "", fmt.Errorf("sendTransaction RPC failed: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("sendTransaction error: code=%d, message=%s%s",
			resp.Error.Code, resp.Error.Message, preflightLogs(resp.Error))
	}

	return resp.Result, nil
}

// preflightLogs extracts the simulation logs a node attaches to a failed
// preflight, so program errors such as "custom program error: 0x4" surface
// in the error message.
func preflightLogs(e *RPCError) string {
	if len(e.Data) == 0 {
		return ""
	}
	var data struct {
		Err  interface{} `json:"err"`
		Logs []string    `json:"logs"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return ""
	}
	var b strings.Builder
	if data.Err != nil {
		fmt.Fprintf(&b, " (err=%v)", data.Err)
	}
	for _, l := range data.Logs {
		b.WriteString("\n")
		b.WriteString(l)
	}
	return b.String()
}

// GetSignatureStatus returns the status of a single signature, or nil when the
// node has not seen it yet.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	var resp struct {
		Result struct {
			Value []*SignatureStatus `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		[]string{signature},
		map[string]any{"searchTransactionHistory": true},
	}

	if err := c.Call(ctx, "getSignatureStatuses", params, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("getSignatureStatuses error: %w", resp.Error)
	}

	if len(resp.Result.Value) == 0 || resp.Result.Value[0] == nil || resp.Result.Value[0].ConfirmationStatus == "" {
		return nil, nil // not yet processed
	}
	return resp.Result.Value[0], nil
}

// ConfirmTransaction polls for transaction confirmation until the signature
// reaches commitment, the ledger reports an error, or timeout elapses.
func (c *Client) ConfirmTransaction(
	ctx context.Context,
	signature string,
	commitment string,
	timeout time.Duration,
) error {
	commitment = c.commitmentOr(commitment)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := c.confirmPollInterval

	for {
		confirmed, err := c.checkSignatureStatus(ctx, signature, commitment)
		if err != nil {
			if errors.Is(err, ErrTransactionFailed) {
				return err
			}
			if ctx.Err() == nil {
				// transient status read failures are retried until the deadline
				c.logger.WithError(err).WithFields(logrus.Fields{
					"signature": signature,
				}).Debug("signature status check failed")
			}
		}

		if confirmed {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %v", ErrConfirmTimeout, timeout)
			}
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > c.confirmMaxBackoff {
				backoff = c.confirmMaxBackoff
			}
		}
	}
}

// checkSignatureStatus checks if a signature is confirmed
func (c *Client) checkSignatureStatus(ctx context.Context, signature string, commitment string) (bool, error) {
	status, err := c.GetSignatureStatus(ctx, signature)
	if err != nil {
		return false, err
	}
	if status == nil {
		return false, nil
	}

	if status.Err != nil {
		return false, fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
	}

	switch commitment {
	case "processed":
		return status.ConfirmationStatus != "", nil
	case "confirmed":
		return status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized", nil
	case "finalized":
		return status.ConfirmationStatus == "finalized", nil
	default:
		return status.ConfirmationStatus != "", nil
	}
}
