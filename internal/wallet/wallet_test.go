package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	projectrpc "github.com/aman-zulfiqar/spl-token-manager/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*solana.Transaction
	opts *projectrpc.SendOptions
	err  error
}

func (f *fakeSender) SendTransaction(_ context.Context, tx *solana.Transaction, opts *projectrpc.SendOptions) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, tx)
	f.opts = opts
	return tx.Signatures[0].String(), nil
}

func memoTx(t *testing.T, payer solana.PublicKey, signers ...solana.PublicKey) *solana.Transaction {
	t.Helper()
	metas := solana.AccountMetaSlice{solana.Meta(payer).SIGNER().WRITE()}
	for _, s := range signers {
		metas = append(metas, solana.Meta(s).SIGNER())
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{solana.NewInstruction(solana.MemoProgramID, metas, []byte("memo"))},
		solana.Hash{7},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	return tx
}

func TestParsePrivateKey_Base58(t *testing.T) {
	kp := solana.NewWallet()
	priv, err := parsePrivateKey("  " + base58.Encode(kp.PrivateKey) + "\n")
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), priv.PublicKey())
}

func TestParsePrivateKey_JSONArray(t *testing.T) {
	kp := solana.NewWallet()
	ints := make([]int, len(kp.PrivateKey))
	for i, b := range kp.PrivateKey {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	require.NoError(t, err)

	priv, err := parsePrivateKey(string(raw))
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), priv.PublicKey())
}

func TestParsePrivateKey_Rejects(t *testing.T) {
	cases := map[string]string{
		"short base58":  base58.Encode([]byte{1, 2, 3}),
		"not base58":    "0OIl",
		"bad json":      "[1,2,",
		"byte overflow": "[256]",
		"short json":    "[1,2,3]",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parsePrivateKey(in)
			assert.Error(t, err)
		})
	}
}

func TestNewWallet_RequiresKeyAndSender(t *testing.T) {
	_, err := NewWallet(WalletConfig{}, &fakeSender{})
	assert.Error(t, err)

	_, err = NewWallet(WalletConfig{PrivateKey: base58.Encode(solana.NewWallet().PrivateKey)}, nil)
	assert.Error(t, err)
}

func TestSignAndSend_SignsWithExtraSigners(t *testing.T) {
	kp := solana.NewWallet()
	mint := solana.NewWallet()
	sender := &fakeSender{}

	w, err := NewWallet(WalletConfig{PrivateKey: base58.Encode(kp.PrivateKey)}, sender)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey().String(), w.Address())
	assert.True(t, IsConnected(w))

	tx := memoTx(t, kp.PublicKey(), mint.PublicKey())
	sig, err := w.SignAndSend(context.Background(), tx, []solana.PrivateKey{mint.PrivateKey})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Len(t, tx.Signatures, 2)
	assert.NoError(t, tx.VerifySignatures())
	assert.Equal(t, tx.Signatures[0].String(), sig)
	assert.Equal(t, "processed", sender.opts.PreflightCommitment)
}

func TestSignAndSend_MissingSigner(t *testing.T) {
	kp := solana.NewWallet()
	sender := &fakeSender{}
	w, err := NewWallet(WalletConfig{PrivateKey: base58.Encode(kp.PrivateKey)}, sender)
	require.NoError(t, err)

	tx := memoTx(t, kp.PublicKey(), solana.NewWallet().PublicKey())
	_, err = w.SignAndSend(context.Background(), tx, nil)
	assert.ErrorIs(t, err, ErrSigningFailed)
	assert.Empty(t, sender.sent)
}

func TestSignAndSend_ForeignFeePayer(t *testing.T) {
	kp := solana.NewWallet()
	w, err := NewWallet(WalletConfig{PrivateKey: base58.Encode(kp.PrivateKey)}, &fakeSender{})
	require.NoError(t, err)

	_, err = w.SignAndSend(context.Background(), memoTx(t, solana.NewWallet().PublicKey()), nil)
	assert.ErrorIs(t, err, ErrSigningFailed)
}

func TestSignAndSend_SendErrorIsNotSigningError(t *testing.T) {
	kp := solana.NewWallet()
	sendErr := errors.New("sendTransaction RPC failed: connection refused")
	w, err := NewWallet(WalletConfig{PrivateKey: base58.Encode(kp.PrivateKey)}, &fakeSender{err: sendErr})
	require.NoError(t, err)

	_, err = w.SignAndSend(context.Background(), memoTx(t, kp.PublicKey()), nil)
	assert.ErrorIs(t, err, sendErr)
	assert.False(t, errors.Is(err, ErrSigningFailed))
}

func TestDisconnected(t *testing.T) {
	var s Signer = Disconnected{}
	assert.True(t, s.PublicKey().IsZero())
	assert.False(t, IsConnected(s))

	_, err := s.SignAndSend(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestNewWalletFromEnv(t *testing.T) {
	t.Setenv("WALLET_PRIVATE_KEY", "")
	s, err := NewWalletFromEnv(&fakeSender{})
	require.NoError(t, err)
	assert.False(t, IsConnected(s))

	kp := solana.NewWallet()
	t.Setenv("WALLET_PRIVATE_KEY", base58.Encode(kp.PrivateKey))
	s, err = NewWalletFromEnv(&fakeSender{})
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), s.PublicKey())
}
