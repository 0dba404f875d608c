package tokenengine

import (
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// FindAssociatedTokenAddress derives the ATA PDA for (owner, mint).
func FindAssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return ata, err
}

// NewCreateAssociatedTokenAccountIx builds the instruction creating the ATA
// of (owner, mint), paid for by payer.
func NewCreateAssociatedTokenAccountIx(payer, owner, mint solana.PublicKey) solana.Instruction {
	return associatedtokenaccount.NewCreateInstruction(payer, owner, mint).Build()
}

// newCreateMintAccountIx allocates the mint account, owned by the token program.
func newCreateMintAccountIx(payer, mint solana.PublicKey, lamports, space uint64) solana.Instruction {
	return system.NewCreateAccountInstruction(
		lamports,
		space,
		solana.TokenProgramID,
		payer,
		mint,
	).Build()
}

// newInitializeMintIx sets decimals and makes authority both the mint and
// the freeze authority.
func newInitializeMintIx(mint, authority solana.PublicKey, decimals uint8) solana.Instruction {
	return token.NewInitializeMintInstruction(
		decimals,
		authority,
		authority,
		mint,
		solana.SysVarRentPubkey,
	).Build()
}

// newMintToCheckedIx mints amount into destination. The token program
// rejects it when decimals do not match the mint.
func newMintToCheckedIx(mint, destination, authority solana.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	return token.NewMintToCheckedInstruction(
		amount,
		decimals,
		mint,
		destination,
		authority,
		nil,
	).Build()
}

func newTransferIx(source, destination, owner solana.PublicKey, amount uint64) solana.Instruction {
	return token.NewTransferInstruction(
		amount,
		source,
		destination,
		owner,
		nil,
	).Build()
}
