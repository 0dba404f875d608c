package tokenengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/spl-token-manager/internal/cache"
	"github.com/aman-zulfiqar/spl-token-manager/internal/config"
	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/aman-zulfiqar/spl-token-manager/internal/flags"
	"github.com/aman-zulfiqar/spl-token-manager/internal/models"
	"github.com/aman-zulfiqar/spl-token-manager/internal/rpc"
	"github.com/aman-zulfiqar/spl-token-manager/internal/storage"
	"github.com/aman-zulfiqar/spl-token-manager/internal/wallet"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

const journalTimeout = 5 * time.Second

// FlagReader answers whether a runtime switch is on.
type FlagReader interface {
	IsEnabled(ctx context.Context, key string) (bool, error)
}

// Engine is the main orchestrator for token operations
type Engine struct {
	signer   wallet.Signer
	builder  *Builder
	executor *Executor

	flags FlagReader
	cache storage.OperationCache
	store storage.OperationStore

	cluster            string
	ensureOwnerAccount bool
	logger             *logrus.Logger

	mu       sync.Mutex
	inFlight map[OperationKind]bool

	// set when built from config; closed by Close
	rpc        *rpc.Client
	redis      *cache.RedisCache
	clickhouse *cache.ClickHouseStore
}

// Options wires an Engine from already constructed components. Flags, Cache
// and Store are optional.
type Options struct {
	Ledger  Ledger
	Network Network
	Signer  wallet.Signer

	Flags FlagReader
	Cache storage.OperationCache
	Store storage.OperationStore

	Commitment         string
	ConfirmTimeout     time.Duration
	Cluster            string
	EnsureOwnerAccount bool

	Logger *logrus.Logger
}

func New(opts Options) (*Engine, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("tokenengine: ledger is required")
	}
	if opts.Network == nil {
		return nil, fmt.Errorf("tokenengine: network is required")
	}
	if opts.Signer == nil {
		opts.Signer = wallet.Disconnected{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	return &Engine{
		signer:  opts.Signer,
		builder: NewBuilder(opts.Ledger, opts.Logger),
		executor: NewExecutor(opts.Network, ExecutorConfig{
			Commitment:     opts.Commitment,
			ConfirmTimeout: opts.ConfirmTimeout,
			Cluster:        opts.Cluster,
			Logger:         opts.Logger,
		}),
		flags:              opts.Flags,
		cache:              opts.Cache,
		store:              opts.Store,
		cluster:            opts.Cluster,
		ensureOwnerAccount: opts.EnsureOwnerAccount,
		logger:             opts.Logger,
		inFlight:           make(map[OperationKind]bool),
	}, nil
}

// NewEngine creates an engine with all dependencies from cfg. Redis and
// ClickHouse are optional; when configured but unreachable the engine fails
// to start.
func NewEngine(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Engine, error) {
	if logger == nil {
		logger = logrus.New()
	}

	// 1. RPC client
	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
		Commitment:   cfg.Commitment,
		Logger:       logger,
	})

	// 2. Signer
	var signer wallet.Signer = wallet.Disconnected{}
	if cfg.WalletPrivateKey != "" {
		w, err := wallet.NewWallet(wallet.WalletConfig{PrivateKey: cfg.WalletPrivateKey}, rpcClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
		signer = w
	} else {
		logger.Warn("WALLET_PRIVATE_KEY not set, token operations will be rejected")
	}

	opts := Options{
		Ledger:             rpcClient,
		Network:            rpcClient,
		Signer:             signer,
		Commitment:         cfg.Commitment,
		ConfirmTimeout:     cfg.ConfirmTimeout,
		Cluster:            cfg.Cluster,
		EnsureOwnerAccount: cfg.EnsureOwnerAccount,
		Logger:             logger,
	}

	// 3. Redis: recent operations, live feed, kill switches
	var redisCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		flagStore, err := flags.NewStore(rc.Client())
		if err != nil {
			_ = rc.Close()
			return nil, err
		}
		redisCache = rc
		opts.Cache = rc
		opts.Flags = flagStore
	}

	// 4. ClickHouse operation log
	var clickhouseStore *cache.ClickHouseStore
	if cfg.ClickHouseEnabled() {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			if redisCache != nil {
				_ = redisCache.Close()
			}
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		if err := ch.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Warn("token_operations schema check failed")
		}
		clickhouseStore = ch
		opts.Store = ch
	}

	e, err := New(opts)
	if err != nil {
		return nil, err
	}
	e.rpc = rpcClient
	e.redis = redisCache
	e.clickhouse = clickhouseStore
	return e, nil
}

// NewEngineFromEnv creates an engine using environment variables
func NewEngineFromEnv(ctx context.Context, logger *logrus.Logger) (*Engine, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewEngine(ctx, cfg, logger)
}

// RPC returns the connection the engine was built with, or nil.
func (e *Engine) RPC() *rpc.Client { return e.rpc }

// Redis returns the Redis cache the engine journals to, or nil.
func (e *Engine) Redis() *cache.RedisCache { return e.redis }

// ClickHouse returns the operation log store, or nil.
func (e *Engine) ClickHouse() *cache.ClickHouseStore { return e.clickhouse }

// Signer returns the wallet the engine submits with.
func (e *Engine) Signer() wallet.Signer { return e.signer }

// Requester is the connected wallet, zero when disconnected.
func (e *Engine) Requester() solana.PublicKey { return e.signer.PublicKey() }

// Cluster is the cluster name used for explorer links.
func (e *Engine) Cluster() string { return e.cluster }

func (e *Engine) CreateMint(ctx context.Context, req CreateMintRequest) (*Outcome, error) {
	return e.Execute(ctx, req)
}

func (e *Engine) MintTo(ctx context.Context, req MintToRequest) (*Outcome, error) {
	return e.Execute(ctx, req)
}

func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (*Outcome, error) {
	return e.Execute(ctx, req)
}

// Execute runs one operation end to end. The requester is always the
// connected wallet. The outcome is resolved on return and journaled best effort.
func (e *Engine) Execute(ctx context.Context, req Request) (*Outcome, error) {
	if req == nil {
		out := NewOutcome("")
		err := invalid("", "request is nil")
		_ = out.Fail(err)
		return out, err
	}
	kind := req.Kind()
	req = req.withRequester(e.signer.PublicKey())

	reject := func(err error) (*Outcome, error) {
		out := NewOutcome(kind)
		out.Owner = ownerString(req.RequesterKey())
		_ = out.Fail(err)
		e.journal(ctx, out)
		return out, err
	}

	if !e.enabled(ctx, kind) {
		return reject(&OperationError{Op: kind, Kind: ErrOperationDisabled})
	}

	if !e.acquire(kind) {
		return reject(&OperationError{Op: kind, Kind: ErrInFlight})
	}
	defer e.release(kind)

	plan, err := e.builder.Build(ctx, req)
	if err != nil {
		return reject(err)
	}

	out, err := e.executor.Submit(ctx, plan, e.signer)
	if err == nil {
		out.Message = successMessage(plan)
		if kind == KindCreateMint {
			out.MintURL = constants.ExplorerAddressURL(plan.Mint.String(), e.cluster)
			if e.ensureOwnerAccount {
				e.createOwnerAccount(ctx, out, plan.Payer, plan.Mint)
			}
		}
	}

	e.journal(ctx, out)
	return out, err
}

// createOwnerAccount creates the requester's own token account for a freshly
// created mint. Failure is logged and does not fail the mint.
func (e *Engine) createOwnerAccount(ctx context.Context, out *Outcome, owner, mint solana.PublicKey) {
	log := e.logger.WithFields(logrus.Fields{
		"operation": out.ID,
		"mint":      mint.String(),
	})

	plan, err := e.builder.BuildOwnerAccount(ctx, owner, mint)
	if err != nil {
		log.WithError(err).Warn("could not plan owner token account")
		return
	}
	if plan == nil {
		return
	}

	follow, err := e.executor.Submit(ctx, plan, e.signer)
	e.journal(ctx, follow)
	if err != nil {
		log.WithError(err).Warn("mint created but owner token account was not")
		return
	}
	out.TokenAccount = follow.TokenAccount
}

func (e *Engine) enabled(ctx context.Context, kind OperationKind) bool {
	if e.flags == nil {
		return true
	}
	on, err := e.flags.IsEnabled(ctx, flags.OperationKey(string(kind)))
	if err != nil {
		e.logger.WithError(err).WithField("kind", kind).Warn("flag lookup failed, allowing operation")
		return true
	}
	return on
}

func (e *Engine) acquire(kind OperationKind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[kind] {
		return false
	}
	e.inFlight[kind] = true
	return true
}

func (e *Engine) release(kind OperationKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, kind)
}

// journal publishes to redis/clickhouse (best-effort)
func (e *Engine) journal(ctx context.Context, out *Outcome) {
	if out == nil || (e.cache == nil && e.store == nil) {
		return
	}
	ev := out.Event(e.cluster)

	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	log := e.logger.WithField("operation", out.ID)
	if e.cache != nil {
		if err := e.cache.AddRecentOperation(jctx, ev); err != nil {
			log.WithError(err).Warn("failed to cache operation")
		}
		if err := e.cache.PublishOperation(jctx, ev); err != nil {
			log.WithError(err).Warn("failed to publish operation")
		}
	}
	if e.store != nil {
		if err := e.store.InsertOperation(jctx, ev); err != nil {
			log.WithError(err).Warn("failed to store operation")
		}
	}
}

// Close cleans up all resources
func (e *Engine) Close() error {
	var errs []error

	if c, ok := e.signer.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("wallet close: %w", err))
		}
	}

	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	if e.clickhouse != nil {
		if err := e.clickhouse.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}

	return nil
}

// Event flattens the outcome for the journal.
func (o *Outcome) Event(cluster string) *models.OperationEvent {
	ts := o.SubmittedAt
	if o.ResolvedAt != nil {
		ts = *o.ResolvedAt
	}
	return &models.OperationEvent{
		ID:           o.ID,
		Signature:    o.Signature,
		Timestamp:    ts,
		Kind:         string(o.Kind),
		Status:       string(o.Status),
		Mint:         o.Mint,
		Owner:        o.Owner,
		Counterparty: o.Counterparty,
		TokenAccount: o.TokenAccount,
		Amount:       o.Amount,
		BaseUnits:    o.BaseUnits,
		Decimals:     o.Decimals,
		Reason:       o.Reason,
		ErrorKind:    string(o.ErrorKind),
		Cluster:      cluster,
	}
}

func successMessage(plan *InstructionPlan) string {
	switch plan.Kind {
	case KindCreateMint:
		return fmt.Sprintf("Token created! Mint address: %s", plan.Mint)
	case KindMintTo:
		return fmt.Sprintf("Successfully minted %s tokens!", plan.Amount)
	case KindTransfer:
		return fmt.Sprintf("Successfully sent %s tokens to %s...", plan.Amount, ShortAddress(plan.Counterparty.String(), 8))
	case KindCreateAccount:
		return fmt.Sprintf("Token account created: %s", plan.Destination)
	default:
		return ""
	}
}

// ShortAddress returns the first n characters of an address.
func ShortAddress(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func ownerString(pk solana.PublicKey) string {
	if pk.IsZero() {
		return ""
	}
	return pk.String()
}
