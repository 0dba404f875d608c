package poller

import (
	"context"
	"sync"
	"time"

	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/aman-zulfiqar/spl-token-manager/internal/models"
	"github.com/aman-zulfiqar/spl-token-manager/internal/storage"
	"github.com/aman-zulfiqar/spl-token-manager/internal/watchlist"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

const (
	errKeySOL     = "sol"
	errKeyHistory = "history"
	cacheTimeout  = 2 * time.Second
)

// DashboardConfig holds configuration for a dashboard session
type DashboardConfig struct {
	Owner     solana.PublicKey
	Balances  *BalanceReader
	History   *HistoryReader
	Watchlist *watchlist.List

	// Cache is optional
	Cache storage.SnapshotCache

	BalanceInterval time.Duration
	HistoryInterval time.Duration
	HistoryLimit    int
	Logger          *logrus.Logger
}

// Dashboard keeps a live view of one wallet: SOL balance, one balance per
// watched token and recent history. Every accepted read publishes a fresh
// snapshot to subscribers.
type Dashboard struct {
	cfg    DashboardConfig
	logger *logrus.Logger
	sched  *Scheduler

	mu         sync.Mutex
	started    bool
	sol        *models.SOLBalance
	tokens     map[string]models.TokenBalance
	history    []models.HistoryEntry
	errs       map[string]string
	updatedAt  time.Time
	solGate    TickGate
	histGate   TickGate
	tokenGates map[string]*TickGate
	tokenTasks map[string]*Task

	subMu  sync.Mutex
	subs   map[int]chan *models.DashboardSnapshot
	nextID int
}

// NewDashboard creates a dashboard session. Nothing polls until Start.
func NewDashboard(cfg DashboardConfig) *Dashboard {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.BalanceInterval <= 0 {
		cfg.BalanceInterval = constants.BalancePollInterval
	}
	if cfg.HistoryInterval <= 0 {
		cfg.HistoryInterval = constants.HistoryPollInterval
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = constants.DefaultHistoryLimit
	}
	if cfg.Watchlist == nil {
		cfg.Watchlist = watchlist.New()
	}
	d := &Dashboard{
		cfg:        cfg,
		logger:     cfg.Logger,
		tokens:     make(map[string]models.TokenBalance),
		errs:       make(map[string]string),
		tokenGates: make(map[string]*TickGate),
		tokenTasks: make(map[string]*Task),
		subs:       make(map[int]chan *models.DashboardSnapshot),
	}
	cfg.Watchlist.OnChange(d.SyncTokens)
	return d
}

// Start schedules the balance and history reads. They run until ctx is
// cancelled or Stop is called.
func (d *Dashboard) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.sched = NewScheduler(ctx, d.logger)
	d.mu.Unlock()

	d.logger.WithFields(logrus.Fields{
		"owner":            d.cfg.Owner.String(),
		"balance_interval": d.cfg.BalanceInterval,
		"history_interval": d.cfg.HistoryInterval,
	}).Info("starting dashboard polling")

	d.sched.Every("sol-balance", d.cfg.BalanceInterval, d.pollSOL)
	d.sched.Every("history", d.cfg.HistoryInterval, d.pollHistory)

	d.SyncTokens()
}

// Stop cancels every task of the session and closes every subscription.
// The session can be started again.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	sched := d.sched
	d.started = false
	d.tokenTasks = make(map[string]*Task)
	d.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}

	// a restarted scheduler numbers its ticks from 1 again
	d.mu.Lock()
	d.solGate.Reset()
	d.histGate.Reset()
	d.tokenGates = make(map[string]*TickGate)
	d.mu.Unlock()

	d.subMu.Lock()
	for id, ch := range d.subs {
		close(ch)
		delete(d.subs, id)
	}
	d.subMu.Unlock()
}

// SyncTokens starts a balance task for every newly watched token and stops
// the tasks of tokens no longer watched.
func (d *Dashboard) SyncTokens() {
	watched := d.cfg.Watchlist.Tokens()

	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	keep := make(map[string]bool, len(watched))
	var stop []*Task
	for _, tok := range watched {
		keep[tok.Address] = true
		if _, ok := d.tokenTasks[tok.Address]; ok {
			continue
		}
		gate := &TickGate{}
		d.tokenGates[tok.Address] = gate
		d.tokenTasks[tok.Address] = d.sched.Every("token-balance:"+tok.Symbol, d.cfg.BalanceInterval, d.tokenPoll(tok, gate))
	}
	for addr, task := range d.tokenTasks {
		if keep[addr] {
			continue
		}
		stop = append(stop, task)
		delete(d.tokenTasks, addr)
		delete(d.tokenGates, addr)
		delete(d.tokens, addr)
		delete(d.errs, tokenErrKey(addr))
	}
	d.mu.Unlock()

	for _, task := range stop {
		task.Stop()
	}
	if len(stop) > 0 {
		d.publish()
	}
}

func (d *Dashboard) pollSOL(ctx context.Context, tick uint64) {
	bal, err := d.cfg.Balances.SOL(ctx, d.cfg.Owner)
	if ctx.Err() != nil {
		return
	}

	d.mu.Lock()
	if !d.solGate.Accept(tick) {
		d.mu.Unlock()
		d.logger.WithField("tick", tick).Debug("dropping stale SOL balance")
		return
	}
	if err != nil {
		d.errs[errKeySOL] = err.Error()
	} else {
		d.sol = bal
		delete(d.errs, errKeySOL)
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.WithError(err).Warn("SOL balance poll failed")
	}
	d.publish()
}

func (d *Dashboard) pollHistory(ctx context.Context, tick uint64) {
	entries, err := d.cfg.History.Recent(ctx, d.cfg.Owner, d.cfg.HistoryLimit)
	if ctx.Err() != nil {
		return
	}

	d.mu.Lock()
	if !d.histGate.Accept(tick) {
		d.mu.Unlock()
		d.logger.WithField("tick", tick).Debug("dropping stale history")
		return
	}
	if err != nil {
		d.errs[errKeyHistory] = err.Error()
	} else {
		d.history = entries
		delete(d.errs, errKeyHistory)
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.WithError(err).Warn("history poll failed")
	}
	d.publish()
}

func (d *Dashboard) tokenPoll(tok watchlist.Token, gate *TickGate) TickFunc {
	mint := solana.MustPublicKeyFromBase58(tok.Address)
	return func(ctx context.Context, tick uint64) {
		bal, err := d.cfg.Balances.Token(ctx, d.cfg.Owner, mint, tok.Decimals)
		if ctx.Err() != nil {
			return
		}

		d.mu.Lock()
		// the token may have been removed while the read was in flight
		if d.tokenGates[tok.Address] != gate || !gate.Accept(tick) {
			d.mu.Unlock()
			return
		}
		if err != nil {
			d.errs[tokenErrKey(tok.Address)] = err.Error()
		} else {
			bal.Name = tok.Name
			bal.Symbol = tok.Symbol
			d.tokens[tok.Address] = *bal
			delete(d.errs, tokenErrKey(tok.Address))
		}
		d.mu.Unlock()

		if err != nil {
			d.logger.WithError(err).WithField("mint", tok.Address).Warn("token balance poll failed")
		}
		d.publish()
	}
}

// Snapshot returns the current view.
func (d *Dashboard) Snapshot() *models.DashboardSnapshot {
	watched := d.cfg.Watchlist.Tokens()

	d.mu.Lock()
	defer d.mu.Unlock()

	snap := &models.DashboardSnapshot{
		Owner:     d.cfg.Owner.String(),
		Tokens:    make([]models.TokenBalance, 0, len(watched)),
		History:   make([]models.HistoryEntry, len(d.history)),
		UpdatedAt: d.updatedAt,
	}
	if d.sol != nil {
		sol := *d.sol
		snap.SOL = &sol
	}
	for _, tok := range watched {
		if bal, ok := d.tokens[tok.Address]; ok {
			snap.Tokens = append(snap.Tokens, bal)
		}
	}
	copy(snap.History, d.history)
	if len(d.errs) > 0 {
		snap.Errors = make(map[string]string, len(d.errs))
		for k, v := range d.errs {
			snap.Errors[k] = v
		}
	}
	return snap
}

// Subscribe returns a channel of snapshots and a function that ends the
// subscription. A slow subscriber only ever sees the latest snapshot.
func (d *Dashboard) Subscribe() (<-chan *models.DashboardSnapshot, func()) {
	ch := make(chan *models.DashboardSnapshot, 1)

	d.subMu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = ch
	d.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.subMu.Lock()
			defer d.subMu.Unlock()
			if c, ok := d.subs[id]; ok {
				close(c)
				delete(d.subs, id)
			}
		})
	}
}

func (d *Dashboard) publish() {
	d.mu.Lock()
	d.updatedAt = time.Now().UTC()
	d.mu.Unlock()

	snap := d.Snapshot()

	d.subMu.Lock()
	for _, ch := range d.subs {
		select {
		case ch <- snap:
		default:
			// replace the unread snapshot with the newer one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	d.subMu.Unlock()

	if d.cfg.Cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
		defer cancel()
		if err := d.cfg.Cache.SetSnapshot(ctx, snap); err != nil {
			d.logger.WithError(err).Debug("failed to cache dashboard snapshot")
		}
	}
}

func tokenErrKey(mint string) string {
	return "token:" + mint
}
