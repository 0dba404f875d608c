package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/aman-zulfiqar/spl-token-manager/internal/tokenengine"
	"github.com/aman-zulfiqar/spl-token-manager/internal/watchlist"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// operationTimeout bounds a whole submission including confirmation.
const operationTimeout = 90 * time.Second

// operationResult writes an outcome, mapping failures to their status code.
func (h *Handlers) operationResult(c echo.Context, out *tokenengine.Outcome, err error, okStatus int) error {
	if err == nil {
		return c.JSON(okStatus, out)
	}

	code := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code, Operation: out}
	var opErr *tokenengine.OperationError
	if errors.As(err, &opErr) {
		resp.Error = opErr.Reason()
		resp.Hint = opErr.Hint
	}
	if h.DevMode {
		resp.Details = map[string]any{"err": err.Error(), "error_kind": tokenengine.KindOf(err)}
	}
	return c.JSON(code, resp)
}

// decimalsFor picks the decimals of mint: explicit value, then the watch
// list entry, then the default.
func (h *Handlers) decimalsFor(mint string, explicit *int) int {
	if explicit != nil {
		return *explicit
	}
	if tok, ok := h.watched(mint); ok {
		return int(tok.Decimals)
	}
	return constants.DefaultTokenDecimals
}

func (h *Handlers) watched(mint string) (watchlist.Token, bool) {
	if h.Watchlist == nil {
		return watchlist.Token{}, false
	}
	return h.Watchlist.Get(mint)
}

// CreateMint creates a new token mint owned by the connected wallet.
// A named mint is added to the watch list.
func (h *Handlers) CreateMint(c echo.Context) error {
	var req CreateMintRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	decimals := constants.DefaultTokenDecimals
	if req.Decimals != nil {
		decimals = *req.Decimals
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), operationTimeout)
	defer cancel()

	out, err := h.Engine.CreateMint(ctx, tokenengine.CreateMintRequest{
		Decimals: decimals,
		Name:     strings.TrimSpace(req.Name),
		Symbol:   strings.TrimSpace(req.Symbol),
	})
	if err == nil && h.Watchlist != nil && (out.Name != "" || out.Symbol != "") {
		if _, werr := h.Watchlist.Add(out.Mint, out.Name, out.Symbol, &decimals); werr != nil && !errors.Is(werr, watchlist.ErrDuplicate) {
			h.log().WithError(werr).WithField("mint", out.Mint).Warn("could not watch new mint")
		}
	}
	return h.operationResult(c, out, err, http.StatusCreated)
}

// MintTo mints supply of the mint in the path.
func (h *Handlers) MintTo(c echo.Context) error {
	mint := strings.TrimSpace(c.Param("mint"))
	var req MintToRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), operationTimeout)
	defer cancel()

	out, err := h.Engine.MintTo(ctx, tokenengine.MintToRequest{
		MintAddress:      mint,
		DestinationOwner: strings.TrimSpace(req.Destination),
		Amount:           req.Amount,
		Decimals:         h.decimalsFor(mint, req.Decimals),
	})
	return h.operationResult(c, out, err, http.StatusOK)
}

// Transfer sends tokens of the mint in the path to a recipient wallet.
func (h *Handlers) Transfer(c echo.Context) error {
	mint := strings.TrimSpace(c.Param("mint"))
	var req TransferRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), operationTimeout)
	defer cancel()

	out, err := h.Engine.Transfer(ctx, tokenengine.TransferRequest{
		MintAddress:    mint,
		RecipientOwner: strings.TrimSpace(req.Recipient),
		Amount:         req.Amount,
		Decimals:       h.decimalsFor(mint, req.Decimals),
	})
	return h.operationResult(c, out, err, http.StatusOK)
}

// TokenBalance returns a wallet's balance of the mint in the path.
// Accepts decimals and owner query parameters.
func (h *Handlers) TokenBalance(c echo.Context) error {
	mintStr := strings.TrimSpace(c.Param("mint"))
	mint, err := tokenengine.ParseAddress(mintStr)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": err.Error()})
	}
	var explicit *int
	if c.QueryParam("decimals") != "" {
		d, err := queryInt(c, "decimals", 0, 0, constants.MaxTokenDecimals)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid decimals", map[string]any{"decimals": err.Error()})
		}
		explicit = &d
	}
	owner, err := h.ownerParam(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	bal, err := h.Balances.Token(ctx, owner, mint, uint8(h.decimalsFor(mint.String(), explicit)))
	if err != nil {
		h.log().WithError(err).WithFields(logrus.Fields{
			"mint":  mint.String(),
			"owner": owner.String(),
		}).Warn("token balance read failed")
		return h.err(c, http.StatusBadGateway, "failed to get token balance", map[string]any{"err": err.Error()})
	}
	if tok, ok := h.watched(mint.String()); ok {
		bal.Name = tok.Name
		bal.Symbol = tok.Symbol
	}
	return c.JSON(http.StatusOK, bal)
}
