package tokenengine

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// OperationKind names a token operation
type OperationKind string

const (
	KindCreateMint OperationKind = "create_mint"
	KindMintTo     OperationKind = "mint_to"
	KindTransfer   OperationKind = "transfer"

	// KindCreateAccount is the follow-up that creates the creator's own
	// token account after a mint is created.
	KindCreateAccount OperationKind = "create_account"
)

// Request is one of CreateMintRequest, MintToRequest or TransferRequest.
type Request interface {
	Kind() OperationKind
	RequesterKey() solana.PublicKey
	withRequester(pk solana.PublicKey) Request
}

// CreateMintRequest creates a new mint whose mint and freeze authority is
// the requester.
type CreateMintRequest struct {
	Requester solana.PublicKey
	Decimals  int

	// Name and Symbol are not written on-chain. They label the mint in the
	// watch list and the journal.
	Name   string
	Symbol string
}

// MintToRequest mints Amount (human units) into the associated token
// account of DestinationOwner. An empty DestinationOwner means the requester.
type MintToRequest struct {
	Requester        solana.PublicKey
	MintAddress      string
	DestinationOwner string
	Amount           string
	Decimals         int
}

// TransferRequest moves Amount from the requester's associated token
// account to the recipient's, creating the latter when needed.
type TransferRequest struct {
	Requester      solana.PublicKey
	MintAddress    string
	RecipientOwner string
	Amount         string
	Decimals       int
}

func (CreateMintRequest) Kind() OperationKind { return KindCreateMint }
func (MintToRequest) Kind() OperationKind     { return KindMintTo }
func (TransferRequest) Kind() OperationKind   { return KindTransfer }

func (r CreateMintRequest) RequesterKey() solana.PublicKey { return r.Requester }
func (r MintToRequest) RequesterKey() solana.PublicKey     { return r.Requester }
func (r TransferRequest) RequesterKey() solana.PublicKey   { return r.Requester }

func (r CreateMintRequest) withRequester(pk solana.PublicKey) Request { r.Requester = pk; return r }
func (r MintToRequest) withRequester(pk solana.PublicKey) Request     { r.Requester = pk; return r }
func (r TransferRequest) withRequester(pk solana.PublicKey) Request   { r.Requester = pk; return r }

// InstructionPlan is the ordered instruction list for one operation plus the
// facts the submitter and caller need. Account creation instructions always
// precede the instruction that writes to that account.
type InstructionPlan struct {
	Kind         OperationKind
	Payer        solana.PublicKey
	Instructions []solana.Instruction

	// Signers are ephemeral keys that must co-sign (the new mint account).
	Signers []solana.PrivateKey

	Mint           solana.PublicKey
	Counterparty   solana.PublicKey // destination or recipient owner
	Destination    solana.PublicKey // token account written by the primary instruction
	CreatesAccount bool
	Amount         string // normalized human amount
	BaseUnits      uint64
	Decimals       uint8

	Name   string
	Symbol string
}

// Status is the lifecycle state of an Outcome
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// ErrorKind classifies a failed Outcome for callers
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindInvalidRequest    ErrorKind = "invalid_request"
	ErrorKindSignerRejected    ErrorKind = "signer_rejected"
	ErrorKindNetworkFailure    ErrorKind = "network_failure"
	ErrorKindInFlight          ErrorKind = "in_flight"
	ErrorKindOperationDisabled ErrorKind = "operation_disabled"
)

// Outcome is the result of one submission. It starts pending and moves
// exactly once to confirmed or failed. An Outcome is owned by the goroutine
// that created it until it is returned.
type Outcome struct {
	ID          string        `json:"id"`
	Kind        OperationKind `json:"kind"`
	Status      Status        `json:"status"`
	Signature   string        `json:"signature,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Hint        string        `json:"hint,omitempty"`
	ErrorKind   ErrorKind     `json:"error_kind,omitempty"`
	Message     string        `json:"message,omitempty"`
	ExplorerURL string        `json:"explorer_url,omitempty"`
	MintURL     string        `json:"mint_url,omitempty"`

	Mint         string `json:"mint,omitempty"`
	Owner        string `json:"owner,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
	TokenAccount string `json:"token_account,omitempty"`
	Amount       string `json:"amount,omitempty"`
	BaseUnits    uint64 `json:"base_units,omitempty"`
	Decimals     uint8  `json:"decimals"`
	Name         string `json:"name,omitempty"`
	Symbol       string `json:"symbol,omitempty"`

	SubmittedAt time.Time  `json:"submitted_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// NewOutcome returns a pending outcome with a fresh id.
func NewOutcome(kind OperationKind) *Outcome {
	return &Outcome{
		ID:          uuid.NewString(),
		Kind:        kind,
		Status:      StatusPending,
		SubmittedAt: time.Now().UTC(),
	}
}

// Pending reports whether the outcome has not resolved yet.
func (o *Outcome) Pending() bool { return o.Status == StatusPending }

// Confirm resolves the outcome as confirmed.
func (o *Outcome) Confirm(signature string) error {
	if err := o.resolve(StatusConfirmed); err != nil {
		return err
	}
	o.Signature = signature
	return nil
}

// Fail resolves the outcome as failed with the classification of err.
func (o *Outcome) Fail(err error) error {
	if e := o.resolve(StatusFailed); e != nil {
		return e
	}
	o.ErrorKind = KindOf(err)
	o.Reason = err.Error()
	var opErr *OperationError
	if errors.As(err, &opErr) {
		o.Reason = opErr.Reason()
		o.Hint = opErr.Hint
	}
	return nil
}

func (o *Outcome) resolve(to Status) error {
	if o.Status != StatusPending {
		return fmt.Errorf("outcome %s already %s", o.ID, o.Status)
	}
	o.Status = to
	now := time.Now().UTC()
	o.ResolvedAt = &now
	return nil
}

func (o *Outcome) attach(plan *InstructionPlan) {
	if plan == nil {
		return
	}
	if !plan.Mint.IsZero() {
		o.Mint = plan.Mint.String()
	}
	if !plan.Payer.IsZero() {
		o.Owner = plan.Payer.String()
	}
	if !plan.Counterparty.IsZero() {
		o.Counterparty = plan.Counterparty.String()
	}
	if !plan.Destination.IsZero() {
		o.TokenAccount = plan.Destination.String()
	}
	o.Amount = plan.Amount
	o.BaseUnits = plan.BaseUnits
	o.Decimals = plan.Decimals
	o.Name = plan.Name
	o.Symbol = plan.Symbol
}
