package batches

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/packhouse-erp/packhouse-erp/internal/platform/httpx"
	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

// Handler exposes read-only batch ledger endpoints. Writes happen through
// order completion only.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/incomplete", h.incomplete)
	r.Get("/{batchNumber}", h.show)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	batches, total, err := h.service.List(r.Context(), shared.Pagination{Limit: limit, Offset: offset})
	if err != nil {
		h.logger.Error("list batches", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches, "total": total})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	batchNumber := chi.URLParam(r, "batchNumber")
	if batchNumber == "" {
		httpx.RespondError(w, fmt.Errorf("%w: batch number is required", shared.ErrValidation))
		return
	}
	b, err := h.service.Get(r.Context(), batchNumber)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"batch":     b,
		"remaining": b.Remaining(),
	})
}

func (h *Handler) incomplete(w http.ResponseWriter, r *http.Request) {
	threshold := decimal.Zero
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid threshold", shared.ErrValidation))
			return
		}
		threshold = parsed
	}
	batches, err := h.service.IncompleteReport(r.Context(), threshold)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}
