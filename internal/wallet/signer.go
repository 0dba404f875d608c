package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	projectrpc "github.com/aman-zulfiqar/spl-token-manager/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var (
	// ErrNotConnected is returned by a signer that holds no key.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrSigningFailed wraps every failure to produce a signature.
	ErrSigningFailed = errors.New("signing failed")
)

// Signer is the only component that touches the user's private key. It
// exposes the public key (zero when disconnected) and signs-and-submits
// transactions, adding the extra signers a plan needs.
type Signer interface {
	PublicKey() solana.PublicKey
	SignAndSend(ctx context.Context, tx *solana.Transaction, extra []solana.PrivateKey) (string, error)
}

// Sender submits signed transactions to the ledger.
type Sender interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts *projectrpc.SendOptions) (string, error)
}

type WalletConfig struct {
	PrivateKey string // base58-encoded 64-byte key OR solana-keygen JSON array

	SkipPreflight       bool
	PreflightCommitment string // e.g. "processed"
}

type Wallet struct {
	cfg    WalletConfig
	sender Sender
	priv   solana.PrivateKey
	pub    solana.PublicKey
}

func NewWallet(cfg WalletConfig, sender Sender) (*Wallet, error) {
	if sender == nil {
		return nil, fmt.Errorf("wallet: sender is required")
	}
	if cfg.PreflightCommitment == "" {
		cfg.PreflightCommitment = "processed"
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("wallet: PrivateKey is required")
	}

	priv, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		cfg:    cfg,
		sender: sender,
		priv:   priv,
		pub:    priv.PublicKey(),
	}, nil
}

// NewWalletFromEnv loads WALLET_PRIVATE_KEY. When the variable is unset it
// returns a Disconnected signer so read-only callers keep working.
func NewWalletFromEnv(sender Sender) (Signer, error) {
	key := os.Getenv("WALLET_PRIVATE_KEY")
	if strings.TrimSpace(key) == "" {
		return Disconnected{}, nil
	}
	return NewWallet(WalletConfig{PrivateKey: key}, sender)
}

func (w *Wallet) Address() string             { return w.pub.String() }
func (w *Wallet) PublicKey() solana.PublicKey { return w.pub }
func (w *Wallet) Close() error                { return nil }

// Disconnected is a Signer with no key. Every submission fails with ErrNotConnected.
type Disconnected struct{}

func (Disconnected) PublicKey() solana.PublicKey { return solana.PublicKey{} }

func (Disconnected) SignAndSend(context.Context, *solana.Transaction, []solana.PrivateKey) (string, error) {
	return "", ErrNotConnected
}

// IsConnected reports whether s holds a usable key.
func IsConnected(s Signer) bool {
	return s != nil && !s.PublicKey().IsZero()
}

func parsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		if len(b) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
		}
		return solana.PrivateKey(ed25519.PrivateKey(b)), nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid base58 private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return solana.PrivateKey(ed25519.PrivateKey(raw)), nil
}
