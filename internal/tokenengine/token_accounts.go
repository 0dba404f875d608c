package tokenengine

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// ResolvedTokenAccount describes a token account plus any instructions
// needed to make it usable (create ATA).
type ResolvedTokenAccount struct {
	Account solana.PublicKey
	Created bool // true if PreIxs creates the account
	PreIxs  []solana.Instruction
}

// TokenAccountResolver resolves an owner's ATA for a mint.
type TokenAccountResolver struct {
	ledger Ledger
	logger *logrus.Logger
}

func NewTokenAccountResolver(ledger Ledger, logger *logrus.Logger) *TokenAccountResolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &TokenAccountResolver{ledger: ledger, logger: logger}
}

// Resolve derives the ATA of (owner, mint) and, when it does not exist,
// returns the instruction creating it with payer funding the rent.
//
// A failed existence check counts as "absent". The resulting create
// instruction may then fail on-chain if the account does exist.
func (r *TokenAccountResolver) Resolve(ctx context.Context, payer, owner, mint solana.PublicKey) (*ResolvedTokenAccount, error) {
	if r == nil || r.ledger == nil {
		return nil, fmt.Errorf("token account resolver: ledger is nil")
	}

	ata, err := FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive associated token account: %w", err)
	}

	exists, err := r.ledger.AccountExists(ctx, ata)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"owner": owner.String(),
			"mint":  mint.String(),
			"ata":   ata.String(),
		}).Warn("token account existence check failed, assuming absent")
		exists = false
	}
	if exists {
		return &ResolvedTokenAccount{Account: ata, Created: false}, nil
	}

	return &ResolvedTokenAccount{
		Account: ata,
		Created: true,
		PreIxs:  []solana.Instruction{NewCreateAssociatedTokenAccountIx(payer, owner, mint)},
	}, nil
}
