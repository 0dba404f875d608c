package poller

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/aman-zulfiqar/spl-token-manager/internal/models"
	"github.com/aman-zulfiqar/spl-token-manager/internal/rpc"
	"github.com/aman-zulfiqar/spl-token-manager/internal/tokenengine"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// BalanceSource is the part of the connection balance reads use.
type BalanceSource interface {
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*rpc.TokenAmount, error)
}

// BalanceReader reads SOL and token balances for display.
type BalanceReader struct {
	source BalanceSource
	now    func() time.Time
}

func NewBalanceReader(source BalanceSource) *BalanceReader {
	return &BalanceReader{source: source, now: time.Now}
}

// SOL returns the owner's native balance, formatted to 4 decimal places.
func (r *BalanceReader) SOL(ctx context.Context, owner solana.PublicKey) (*models.SOLBalance, error) {
	lamports, err := r.source.GetBalance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get SOL balance: %w", err)
	}
	return &models.SOLBalance{
		Owner:     owner.String(),
		Lamports:  lamports,
		SOL:       FormatSOL(lamports),
		FetchedAt: r.now().UTC(),
	}, nil
}

// Token returns the owner's balance of mint held in the associated token
// account. A missing account is a zero balance with Exists false.
func (r *BalanceReader) Token(ctx context.Context, owner, mint solana.PublicKey, decimals uint8) (*models.TokenBalance, error) {
	ata, err := tokenengine.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive token account: %w", err)
	}

	bal := &models.TokenBalance{
		Owner:        owner.String(),
		Mint:         mint.String(),
		TokenAccount: ata.String(),
		Amount:       "0",
		UIAmount:     "0",
		Decimals:     decimals,
		FetchedAt:    r.now().UTC(),
	}

	amt, err := r.source.GetTokenAccountBalance(ctx, ata)
	if errors.Is(err, rpc.ErrAccountNotFound) {
		return bal, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}

	// the ledger knows the mint's real decimals
	if amt.Decimals >= 0 && amt.Decimals <= constants.MaxTokenDecimals {
		bal.Decimals = uint8(amt.Decimals)
	}
	ui, err := tokenengine.FromBaseUnits(amt.Amount, int(bal.Decimals))
	if err != nil {
		return nil, fmt.Errorf("bad token amount from node: %w", err)
	}

	bal.Exists = true
	bal.Amount = amt.Amount
	bal.UIAmount = ui
	return bal, nil
}

// FormatSOL renders lamports as SOL with 4 decimal places.
func FormatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9).StringFixed(4)
}
