package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yonghanchen/predictbot/internal/domain"
	"github.com/yonghanchen/predictbot/internal/service"
)

// MarketService defines what the market handler needs from the service
// layer.
type MarketService interface {
	Markets(ctx context.Context, limit int) (service.Result, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	GetMarketByToken(ctx context.Context, tokenID string) (domain.Market, error)
	Count(ctx context.Context) (int64, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

// listMarketsResponse wraps the list endpoint output with refresh metadata.
type listMarketsResponse struct {
	Markets  []domain.MarketView `json:"markets"`
	Outcome  string              `json:"outcome"`
	Attempts int                 `json:"attempts,omitempty"`
	Total    int64               `json:"total"`
}

// ListMarkets runs the refresh cycle and returns tradable markets.
// GET /api/markets?limit=20
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 100)

	res, err := h.markets.Markets(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to fetch markets")
		return
	}

	total, err := h.markets.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets:  domain.Views(res.Markets),
		Outcome:  string(res.Outcome),
		Attempts: res.Attempts,
		Total:    total,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	m, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, m.View())
}

// GetMarketByToken returns the market owning the given outcome token.
// GET /api/markets/token/{tokenID}
func (h *MarketHandler) GetMarketByToken(w http.ResponseWriter, r *http.Request) {
	tokenID := pathParam(r, "tokenID")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "missing token id")
		return
	}

	m, err := h.markets.GetMarketByToken(r.Context(), tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market by token failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, m.View())
}
