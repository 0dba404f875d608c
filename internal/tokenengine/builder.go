package tokenengine

import (
	"context"
	"fmt"

	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// Ledger is the read side of the connection the builder needs.
type Ledger interface {
	AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
}

// Builder turns validated requests into instruction plans. It never submits
// anything and never retries.
type Builder struct {
	ledger   Ledger
	accounts *TokenAccountResolver
	logger   *logrus.Logger

	newMintKey func() (solana.PrivateKey, error)
}

func NewBuilder(ledger Ledger, logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Builder{
		ledger:     ledger,
		accounts:   NewTokenAccountResolver(ledger, logger),
		logger:     logger,
		newMintKey: solana.NewRandomPrivateKey,
	}
}

// Build validates req and assembles its plan. Validation happens before any
// ledger query.
func (b *Builder) Build(ctx context.Context, req Request) (*InstructionPlan, error) {
	if req == nil {
		return nil, invalid("", "request is nil")
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case CreateMintRequest:
		return b.buildCreateMint(ctx, r)
	case MintToRequest:
		return b.buildMintTo(ctx, r)
	case TransferRequest:
		return b.buildTransfer(ctx, r)
	default:
		return nil, invalid(req.Kind(), "unsupported request %T", req)
	}
}

func (b *Builder) buildCreateMint(ctx context.Context, r CreateMintRequest) (*InstructionPlan, error) {
	mintKey, err := b.newMintKey()
	if err != nil {
		return nil, fmt.Errorf("generate mint keypair: %w", err)
	}
	mint := mintKey.PublicKey()

	lamports, err := b.ledger.GetMinimumBalanceForRentExemption(ctx, constants.MintAccountSize)
	if err != nil {
		return nil, networkFailure(KindCreateMint, fmt.Errorf("rent exemption query: %w", err))
	}

	decimals := uint8(r.Decimals)
	return &InstructionPlan{
		Kind:  KindCreateMint,
		Payer: r.Requester,
		Instructions: []solana.Instruction{
			newCreateMintAccountIx(r.Requester, mint, lamports, constants.MintAccountSize),
			newInitializeMintIx(mint, r.Requester, decimals),
		},
		Signers:        []solana.PrivateKey{mintKey},
		Mint:           mint,
		CreatesAccount: true,
		Decimals:       decimals,
		Name:           r.Name,
		Symbol:         r.Symbol,
	}, nil
}

func (b *Builder) buildMintTo(ctx context.Context, r MintToRequest) (*InstructionPlan, error) {
	mint, _ := ParseAddress(r.MintAddress)
	owner := r.Requester
	if r.DestinationOwner != "" {
		owner, _ = ParseAddress(r.DestinationOwner)
	}
	amount, _ := ParseAmount(r.Amount)
	units, _ := shiftToBaseUnits(amount, r.Decimals)
	decimals := uint8(r.Decimals)

	dest, err := b.accounts.Resolve(ctx, r.Requester, owner, mint)
	if err != nil {
		return nil, invalid(KindMintTo, "%v", err)
	}

	ixs := make([]solana.Instruction, 0, len(dest.PreIxs)+1)
	ixs = append(ixs, dest.PreIxs...)
	ixs = append(ixs, newMintToCheckedIx(mint, dest.Account, r.Requester, units, decimals))

	return &InstructionPlan{
		Kind:           KindMintTo,
		Payer:          r.Requester,
		Instructions:   ixs,
		Mint:           mint,
		Counterparty:   owner,
		Destination:    dest.Account,
		CreatesAccount: dest.Created,
		Amount:         amount.String(),
		BaseUnits:      units,
		Decimals:       decimals,
	}, nil
}

func (b *Builder) buildTransfer(ctx context.Context, r TransferRequest) (*InstructionPlan, error) {
	mint, _ := ParseAddress(r.MintAddress)
	recipient, _ := ParseAddress(r.RecipientOwner)
	amount, _ := ParseAmount(r.Amount)
	units, _ := shiftToBaseUnits(amount, r.Decimals)

	source, err := FindAssociatedTokenAddress(r.Requester, mint)
	if err != nil {
		return nil, invalid(KindTransfer, "derive source token account: %v", err)
	}

	dest, err := b.accounts.Resolve(ctx, r.Requester, recipient, mint)
	if err != nil {
		return nil, invalid(KindTransfer, "%v", err)
	}

	ixs := make([]solana.Instruction, 0, len(dest.PreIxs)+1)
	ixs = append(ixs, dest.PreIxs...)
	ixs = append(ixs, newTransferIx(source, dest.Account, r.Requester, units))

	return &InstructionPlan{
		Kind:           KindTransfer,
		Payer:          r.Requester,
		Instructions:   ixs,
		Mint:           mint,
		Counterparty:   recipient,
		Destination:    dest.Account,
		CreatesAccount: dest.Created,
		Amount:         amount.String(),
		BaseUnits:      units,
		Decimals:       uint8(r.Decimals),
	}, nil
}

// BuildOwnerAccount plans the creation of owner's ATA for mint, or returns
// nil when it already exists.
func (b *Builder) BuildOwnerAccount(ctx context.Context, owner, mint solana.PublicKey) (*InstructionPlan, error) {
	res, err := b.accounts.Resolve(ctx, owner, owner, mint)
	if err != nil {
		return nil, err
	}
	if !res.Created {
		return nil, nil
	}
	return &InstructionPlan{
		Kind:           KindCreateAccount,
		Payer:          owner,
		Instructions:   res.PreIxs,
		Mint:           mint,
		Counterparty:   owner,
		Destination:    res.Account,
		CreatesAccount: true,
	}, nil
}
