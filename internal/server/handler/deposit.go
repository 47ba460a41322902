package handler

import (
	"log/slog"
	"net/http"

	"github.com/yonghanchen/predictbot/internal/domain"
)

// DepositHandler serves the observed-deposit history.
type DepositHandler struct {
	deposits domain.DepositStore
	wallet   string
	logger   *slog.Logger
}

// NewDepositHandler creates a DepositHandler scoped to the configured
// custodial wallet.
func NewDepositHandler(deposits domain.DepositStore, wallet string, logger *slog.Logger) *DepositHandler {
	return &DepositHandler{deposits: deposits, wallet: wallet, logger: logger}
}

// ListDeposits returns recent observed deposits, newest first.
// GET /api/deposits?limit=50
func (h *DepositHandler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	deps, err := h.deposits.ListByWallet(r.Context(), h.wallet, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list deposits failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list deposits")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":   h.wallet,
		"deposits": deps,
	})
}
