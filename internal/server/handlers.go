package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/spl-token-manager/internal/ai"
	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/aman-zulfiqar/spl-token-manager/internal/flags"
	"github.com/aman-zulfiqar/spl-token-manager/internal/poller"
	"github.com/aman-zulfiqar/spl-token-manager/internal/storage"
	"github.com/aman-zulfiqar/spl-token-manager/internal/tokenengine"
	"github.com/aman-zulfiqar/spl-token-manager/internal/watchlist"
	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// TokenOperator runs token operations for the connected wallet.
type TokenOperator interface {
	CreateMint(ctx context.Context, req tokenengine.CreateMintRequest) (*tokenengine.Outcome, error)
	MintTo(ctx context.Context, req tokenengine.MintToRequest) (*tokenengine.Outcome, error)
	Transfer(ctx context.Context, req tokenengine.TransferRequest) (*tokenengine.Outcome, error)
	Requester() solana.PublicKey
	Cluster() string
}

// FlagStore is the flag CRUD surface backed by Redis.
type FlagStore interface {
	Upsert(ctx context.Context, key string, value bool) (*flags.Flag, error)
	Get(ctx context.Context, key string) (*flags.Flag, error)
	List(ctx context.Context) ([]*flags.Flag, error)
	Delete(ctx context.Context, key string) error
}

// Asker answers natural language questions about past operations.
type Asker interface {
	Ask(ctx context.Context, question string) (*ai.AskResult, error)
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Engine    TokenOperator          // Token operation engine
	Balances  *poller.BalanceReader  // SOL and token balance reads
	History   *poller.HistoryReader  // Recent wallet transactions
	Watchlist *watchlist.List        // Session watch list
	Dashboard *poller.Dashboard      // Live snapshots for /ws (optional)
	Cache     storage.OperationCache // Redis-backed operation journal (optional)
	Flags     FlagStore              // Redis-backed feature flags store (optional)

	AI           Asker          // AI agent for natural language queries (optional)
	AIBaseConfig ai.AgentConfig // Base configuration for per-request model overrides

	HistoryLimit int            // Default history length
	DevMode      bool           // Enable detailed error responses in development
	Logger       *logrus.Logger // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) log() *logrus.Logger {
	if h.Logger == nil {
		return logrus.StandardLogger()
	}
	return h.Logger
}

// queryInt parses an optional integer query parameter within [lo, hi].
func queryInt(c echo.Context, name string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if n < lo || n > hi {
		return 0, errors.New("min " + strconv.Itoa(lo) + " max " + strconv.Itoa(hi))
	}
	return n, nil
}

// ownerParam returns the owner query parameter, or the connected wallet.
func (h *Handlers) ownerParam(c echo.Context) (solana.PublicKey, error) {
	if raw := strings.TrimSpace(c.QueryParam("owner")); raw != "" {
		return tokenengine.ParseAddress(raw)
	}
	owner := h.Engine.Requester()
	if owner.IsZero() {
		return solana.PublicKey{}, errors.New("wallet not connected and no owner given")
	}
	return owner, nil
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		OK:        true,
		Connected: !h.Engine.Requester().IsZero(),
		Cluster:   h.Engine.Cluster(),
	})
}

// Wallet returns the connected wallet address and its SOL balance
func (h *Handlers) Wallet(c echo.Context) error {
	owner := h.Engine.Requester()
	if owner.IsZero() {
		return c.JSON(http.StatusOK, WalletResponse{Connected: false})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	bal, err := h.Balances.SOL(ctx, owner)
	if err != nil {
		h.log().WithError(err).Warn("wallet balance read failed")
		return h.err(c, http.StatusBadGateway, "failed to get balance", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, WalletResponse{Connected: true, Address: owner.String(), Balance: bal})
}

// WalletHistory returns the most recent transactions of the wallet
// Accepts limit query parameter (default: HISTORY_LIMIT, range: 1-100)
func (h *Handlers) WalletHistory(c echo.Context) error {
	def := h.HistoryLimit
	if def <= 0 {
		def = constants.DefaultHistoryLimit
	}
	limit, err := queryInt(c, "limit", def, 1, 100)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": err.Error()})
	}
	owner, err := h.ownerParam(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	items, err := h.History.Recent(ctx, owner, limit)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to get history", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// RecentOperations returns the latest operations from the Redis journal
// Accepts limit query parameter (default: 20, range: 1-100)
func (h *Handlers) RecentOperations(c echo.Context) error {
	if h.Cache == nil {
		return h.err(c, http.StatusServiceUnavailable, "operation journal is not configured", nil)
	}
	limit, err := queryInt(c, "limit", 20, 1, constants.MaxRecentOperations)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Cache.GetRecentOperations(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get operations", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// WatchlistList returns the session watch list
func (h *Handlers) WatchlistList(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"items": h.Watchlist.Tokens()})
}

// WatchlistAdd adds a token to the watch list
func (h *Handlers) WatchlistAdd(c echo.Context) error {
	var req WatchlistAddRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	tok, err := h.Watchlist.Add(req.Address, req.Name, req.Symbol, req.Decimals)
	if err != nil {
		if errors.Is(err, watchlist.ErrDuplicate) {
			return h.err(c, http.StatusConflict, "token already watched", nil)
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: http.StatusBadRequest})
	}
	return c.JSON(http.StatusCreated, tok)
}

// WatchlistRemove drops a token from the watch list
func (h *Handlers) WatchlistRemove(c echo.Context) error {
	if err := h.Watchlist.Remove(c.Param("address")); err != nil {
		return h.err(c, http.StatusNotFound, "token not watched", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

// FlagsUpsert creates or updates a feature flag with the given key and value
// Validates key format and returns the created/updated flag
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate updates an existing feature flag with the given key
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsGet retrieves a feature flag by its key
// Returns 404 if flag doesn't exist
func (h *Handlers) FlagsGet(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns all feature flags in the system
func (h *Handlers) FlagsList(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes a feature flag by its key
// Returns 204 No Content on successful deletion
func (h *Handlers) FlagsDelete(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

// AIAsk answers natural language questions about the operation log
// Supports optional model override for one-off requests
func (h *Handlers) AIAsk(c echo.Context) error {
	if h.AI == nil {
		return h.err(c, http.StatusBadRequest, "ai is not configured", nil)
	}

	var req AIAskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()

	agent := h.AI
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg := h.AIBaseConfig
		cfg.Model = m
		tmp, err := ai.NewAgent(ctx, cfg)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to create ai agent", nil)
		}
		defer func() {
			_ = tmp.Close()
		}()
		agent = tmp
	}

	res, err := agent.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "ai ask failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, AIAskResponse{SQL: res.SQL, Answer: res.Answer, Rows: res.Rows, TookMs: time.Since(start).Milliseconds()})
}
