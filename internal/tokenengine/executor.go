package tokenengine

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/aman-zulfiqar/spl-token-manager/internal/wallet"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// Network is the write side of the connection the executor needs.
type Network interface {
	GetLatestBlockhash(ctx context.Context, commitment string) (solana.Hash, uint64, error)
	ConfirmTransaction(ctx context.Context, signature string, commitment string, timeout time.Duration) error
}

type ExecutorConfig struct {
	Commitment     string
	ConfirmTimeout time.Duration
	Cluster        string
	Logger         *logrus.Logger
}

// Executor submits plans and waits for confirmation. It never retries: a
// resubmission could mint or transfer twice.
type Executor struct {
	network        Network
	commitment     string
	confirmTimeout time.Duration
	cluster        string
	logger         *logrus.Logger
}

func NewExecutor(network Network, cfg ExecutorConfig) *Executor {
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Executor{
		network:        network,
		commitment:     cfg.Commitment,
		confirmTimeout: cfg.ConfirmTimeout,
		cluster:        cfg.Cluster,
		logger:         cfg.Logger,
	}
}

// Submit signs, sends and confirms plan. The returned outcome is always
// resolved; err is non-nil exactly when the outcome failed.
func (e *Executor) Submit(ctx context.Context, plan *InstructionPlan, signer wallet.Signer) (*Outcome, error) {
	if plan == nil {
		out := NewOutcome("")
		err := invalid("", "plan is nil")
		_ = out.Fail(err)
		return out, err
	}

	out := NewOutcome(plan.Kind)
	out.attach(plan)

	fail := func(err *OperationError) (*Outcome, error) {
		_ = out.Fail(err)
		e.logger.WithFields(logrus.Fields{
			"operation":  out.ID,
			"kind":       plan.Kind,
			"signature":  out.Signature,
			"error_kind": out.ErrorKind,
		}).WithError(err).Warn("token operation failed")
		return out, err
	}

	if !wallet.IsConnected(signer) {
		return fail(invalid(plan.Kind, "wallet not connected"))
	}
	requester := signer.PublicKey()
	if !plan.Payer.Equals(requester) {
		return fail(invalid(plan.Kind, "plan payer %s is not the connected wallet %s", plan.Payer, requester))
	}

	blockhash, _, err := e.network.GetLatestBlockhash(ctx, e.commitment)
	if err != nil {
		return fail(networkFailure(plan.Kind, err))
	}

	tx, err := solana.NewTransaction(
		plan.Instructions,
		blockhash,
		solana.TransactionPayer(requester),
	)
	if err != nil {
		return fail(invalid(plan.Kind, "failed to create transaction: %v", err))
	}

	sig, err := signer.SignAndSend(ctx, tx, plan.Signers)
	if err != nil {
		return fail(classifySubmitError(plan.Kind, err))
	}
	out.Signature = sig
	out.ExplorerURL = constants.ExplorerTxURL(sig, e.cluster)

	e.logger.WithFields(logrus.Fields{
		"operation": out.ID,
		"kind":      plan.Kind,
		"signature": sig,
	}).Info("transaction sent, awaiting confirmation")

	confirmCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()
	if err := e.network.ConfirmTransaction(confirmCtx, sig, e.commitment, e.confirmTimeout); err != nil {
		if confirmCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("transaction %s not confirmed within %v: %w", sig, e.confirmTimeout, err)
		}
		return fail(classifySubmitError(plan.Kind, err))
	}

	_ = out.Confirm(sig)
	e.logger.WithFields(logrus.Fields{
		"operation": out.ID,
		"kind":      plan.Kind,
		"signature": sig,
		"mint":      out.Mint,
	}).Info("token operation confirmed")

	return out, nil
}
