package wallet

import (
	"context"
	"fmt"

	projectrpc "github.com/aman-zulfiqar/spl-token-manager/internal/rpc"
	"github.com/gagliardetto/solana-go"
)

// SignTx signs a transaction with the wallet's private key and any extra
// signers the transaction requires.
func (w *Wallet) SignTx(tx *solana.Transaction, extra []solana.PrivateKey) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.pub) {
			return &w.priv
		}
		for i := range extra {
			if key.Equals(extra[i].PublicKey()) {
				return &extra[i]
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return nil
}

// SignAndSend signs tx and submits it once. The returned signature is the
// fee payer's, which is also the transaction id.
func (w *Wallet) SignAndSend(ctx context.Context, tx *solana.Transaction, extra []solana.PrivateKey) (string, error) {
	if tx == nil || len(tx.Message.AccountKeys) == 0 {
		return "", fmt.Errorf("%w: empty transaction", ErrSigningFailed)
	}
	if !tx.Message.AccountKeys[0].Equals(w.pub) {
		return "", fmt.Errorf("%w: fee payer %s is not the connected wallet", ErrSigningFailed, tx.Message.AccountKeys[0])
	}

	if err := w.SignTx(tx, extra); err != nil {
		return "", err
	}

	opts := projectrpc.DefaultSendOptions()
	opts.SkipPreflight = w.cfg.SkipPreflight
	opts.PreflightCommitment = w.cfg.PreflightCommitment

	sig, err := w.sender.SendTransaction(ctx, tx, &opts)
	if err != nil {
		return "", err
	}
	return sig, nil
}
