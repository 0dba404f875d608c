package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode answers JSON-RPC requests from per-method handlers and counts calls.
type fakeNode struct {
	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]func(params json.RawMessage) (int, any)
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		calls:    map[string]int{},
		handlers: map[string]func(params json.RawMessage) (int, any){},
	}
}

func (f *fakeNode) on(method string, h func(params json.RawMessage) (int, any)) {
	f.handlers[method] = h
}

func (f *fakeNode) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64          `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls[req.Method]++
	h := f.handlers[req.Method]
	if h == nil {
		f.mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
		return
	}
	status, body := h(req.Params)
	f.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func result(v any) (int, any) {
	return http.StatusOK, map[string]any{"jsonrpc": "2.0", "id": 1, "result": v}
}

func rpcErr(code int, msg string) (int, any) {
	return http.StatusOK, map[string]any{"jsonrpc": "2.0", "id": 1, "error": map[string]any{"code": code, "message": msg}}
}

func newTestClient(t *testing.T, node *fakeNode) *Client {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:             srv.URL,
		Timeout:             2 * time.Second,
		MaxRetries:          2,
		RetryBackoff:        5 * time.Millisecond,
		ConfirmPollInterval: 5 * time.Millisecond,
	})
}

func TestCall_RetriesTransportErrors(t *testing.T) {
	node := newFakeNode()
	attempts := 0
	node.on("getBalance", func(json.RawMessage) (int, any) {
		attempts++
		if attempts < 3 {
			return http.StatusInternalServerError, nil
		}
		return result(map[string]any{"context": map[string]any{"slot": 1}, "value": 2_500_000_000})
	})
	c := newTestClient(t, node)

	lamports, err := c.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), lamports)
	assert.Equal(t, 3, node.count("getBalance"))
}

func TestCall_GivesUpAfterMaxRetries(t *testing.T) {
	node := newFakeNode()
	node.on("getBalance", func(json.RawMessage) (int, any) {
		return http.StatusTooManyRequests, nil
	})
	c := newTestClient(t, node)

	_, err := c.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 3, node.count("getBalance"))
}

func TestSendTransaction_NotRetried(t *testing.T) {
	node := newFakeNode()
	node.on("sendTransaction", func(json.RawMessage) (int, any) {
		return http.StatusBadGateway, nil
	})
	c := newTestClient(t, node)

	_, err := c.SendTransaction(context.Background(), testTransaction(t), nil)
	require.Error(t, err)
	assert.Equal(t, 1, node.count("sendTransaction"))
}

func TestSendTransaction_SurfacesPreflightLogs(t *testing.T) {
	node := newFakeNode()
	node.on("sendTransaction", func(json.RawMessage) (int, any) {
		return http.StatusOK, map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]any{
				"code":    -32002,
				"message": "Transaction simulation failed",
				"data": map[string]any{
					"err":  map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 4}}},
					"logs": []string{"Program log: Error: owner does not match", "custom program error: 0x4"},
				},
			},
		}
	})
	c := newTestClient(t, node)

	_, err := c.SendTransaction(context.Background(), testTransaction(t), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom program error: 0x4")
	assert.Contains(t, err.Error(), "owner does not match")
}

func TestSendTransaction_ReturnsSignature(t *testing.T) {
	node := newFakeNode()
	var sentConfig map[string]any
	node.on("sendTransaction", func(params json.RawMessage) (int, any) {
		var p []json.RawMessage
		_ = json.Unmarshal(params, &p)
		_ = json.Unmarshal(p[1], &sentConfig)
		return result("5igSig")
	})
	c := newTestClient(t, node)

	sig, err := c.SendTransaction(context.Background(), testTransaction(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "5igSig", sig)
	assert.Equal(t, "base64", sentConfig["encoding"])
	assert.Equal(t, float64(3), sentConfig["maxRetries"])
}

func TestGetAccountInfo_NullIsNotFound(t *testing.T) {
	node := newFakeNode()
	node.on("getAccountInfo", func(json.RawMessage) (int, any) {
		return result(map[string]any{"context": map[string]any{"slot": 1}, "value": nil})
	})
	c := newTestClient(t, node)

	_, err := c.GetAccountInfo(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrAccountNotFound)

	exists, err := c.AccountExists(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAccountExists_Present(t *testing.T) {
	node := newFakeNode()
	node.on("getAccountInfo", func(json.RawMessage) (int, any) {
		return result(map[string]any{
			"context": map[string]any{"slot": 1},
			"value": map[string]any{
				"lamports":   2039280,
				"owner":      solana.TokenProgramID.String(),
				"executable": false,
				"data":       []string{"", "base64"},
			},
		})
	})
	c := newTestClient(t, node)

	exists, err := c.AccountExists(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAccountExists_PropagatesRPCError(t *testing.T) {
	node := newFakeNode()
	node.on("getAccountInfo", func(json.RawMessage) (int, any) {
		return rpcErr(-32005, "node is behind")
	})
	c := newTestClient(t, node)

	_, err := c.AccountExists(context.Background(), solana.NewWallet().PublicKey())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAccountNotFound))
	var rpcError *RPCError
	assert.ErrorAs(t, err, &rpcError)
}

func TestGetTokenAccountBalance(t *testing.T) {
	node := newFakeNode()
	node.on("getTokenAccountBalance", func(json.RawMessage) (int, any) {
		return result(map[string]any{
			"context": map[string]any{"slot": 1},
			"value": map[string]any{
				"amount":         "1500000000",
				"decimals":       9,
				"uiAmount":       1.5,
				"uiAmountString": "1.5",
			},
		})
	})
	c := newTestClient(t, node)

	bal, err := c.GetTokenAccountBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, "1500000000", bal.Amount)
	assert.Equal(t, 9, bal.Decimals)
	assert.Equal(t, "1.5", bal.UIAmountString)
}

func TestGetTokenAccountBalance_MissingAccount(t *testing.T) {
	node := newFakeNode()
	node.on("getTokenAccountBalance", func(json.RawMessage) (int, any) {
		return rpcErr(-32602, "Invalid param: could not find account")
	})
	c := newTestClient(t, node)

	_, err := c.GetTokenAccountBalance(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestGetMinimumBalanceForRentExemption(t *testing.T) {
	node := newFakeNode()
	var size float64
	node.on("getMinimumBalanceForRentExemption", func(params json.RawMessage) (int, any) {
		var p []any
		_ = json.Unmarshal(params, &p)
		size = p[0].(float64)
		return result(1461600)
	})
	c := newTestClient(t, node)

	lamports, err := c.GetMinimumBalanceForRentExemption(context.Background(), 82)
	require.NoError(t, err)
	assert.Equal(t, uint64(1461600), lamports)
	assert.Equal(t, float64(82), size)
}

func TestGetLatestBlockhash(t *testing.T) {
	want := solana.Hash{1, 2, 3, 4}
	node := newFakeNode()
	node.on("getLatestBlockhash", func(json.RawMessage) (int, any) {
		return result(map[string]any{
			"context": map[string]any{"slot": 1},
			"value":   map[string]any{"blockhash": want.String(), "lastValidBlockHeight": 300},
		})
	})
	c := newTestClient(t, node)

	hash, height, err := c.GetLatestBlockhash(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, want, hash)
	assert.Equal(t, uint64(300), height)
}

func statusResult(status string, txErr any) func(json.RawMessage) (int, any) {
	return func(json.RawMessage) (int, any) {
		var value []any
		if status == "" {
			value = []any{nil}
		} else {
			value = []any{map[string]any{"slot": 10, "confirmations": 1, "err": txErr, "confirmationStatus": status}}
		}
		return result(map[string]any{"context": map[string]any{"slot": 10}, "value": value})
	}
}

func TestConfirmTransaction_ReachesCommitment(t *testing.T) {
	node := newFakeNode()
	polls := 0
	node.on("getSignatureStatuses", func(p json.RawMessage) (int, any) {
		polls++
		switch {
		case polls < 2:
			return statusResult("", nil)(p)
		case polls < 3:
			return statusResult("processed", nil)(p)
		default:
			return statusResult("confirmed", nil)(p)
		}
	})
	c := newTestClient(t, node)

	err := c.ConfirmTransaction(context.Background(), "sig", "confirmed", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, node.count("getSignatureStatuses"))
}

func TestConfirmTransaction_Timeout(t *testing.T) {
	node := newFakeNode()
	node.on("getSignatureStatuses", statusResult("", nil))
	c := newTestClient(t, node)

	start := time.Now()
	err := c.ConfirmTransaction(context.Background(), "sig", "confirmed", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrConfirmTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConfirmTransaction_LedgerError(t *testing.T) {
	node := newFakeNode()
	node.on("getSignatureStatuses", statusResult("confirmed", map[string]any{"InstructionError": []any{1, "InvalidAccountData"}}))
	c := newTestClient(t, node)

	err := c.ConfirmTransaction(context.Background(), "sig", "confirmed", time.Second)
	assert.ErrorIs(t, err, ErrTransactionFailed)
}

func TestConfirmTransaction_FinalizedWaitsForFinality(t *testing.T) {
	node := newFakeNode()
	node.on("getSignatureStatuses", statusResult("confirmed", nil))
	c := newTestClient(t, node)

	err := c.ConfirmTransaction(context.Background(), "sig", "finalized", 40*time.Millisecond)
	assert.ErrorIs(t, err, ErrConfirmTimeout)
}

func TestGetTransaction_LogMessages(t *testing.T) {
	node := newFakeNode()
	node.on("getTransaction", func(json.RawMessage) (int, any) {
		return result(map[string]any{
			"slot":      42,
			"blockTime": 1700000000,
			"meta": map[string]any{
				"err":         nil,
				"logMessages": []string{"Program log: Instruction: MintToChecked"},
			},
		})
	})
	c := newTestClient(t, node)

	tx, err := c.GetTransaction(context.Background(), "sig")
	require.NoError(t, err)
	require.NotNil(t, tx.Result)
	assert.Equal(t, []string{"Program log: Instruction: MintToChecked"}, tx.Result.Meta.LogMessages)
	assert.Equal(t, int64(1700000000), tx.Result.BlockTime)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	node := newFakeNode()
	node.on("getBalance", func(json.RawMessage) (int, any) {
		return result(map[string]any{"value": 1})
	})
	srv := httptest.NewServer(node)
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, RateLimit: 0.001, RateBurst: 1})

	_, err := c.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.GetBalance(ctx, solana.NewWallet().PublicKey())
	require.Error(t, err)
	assert.Equal(t, 1, node.count("getBalance"))
}

func testTransaction(t *testing.T) *solana.Transaction {
	t.Helper()
	payer := solana.NewWallet()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{solana.Meta(payer.PublicKey()).SIGNER().WRITE()}, []byte("hi")),
		},
		solana.Hash{9},
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}
