package calendar

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/packhouse-erp/packhouse-erp/internal/platform/httpx"
	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

// Handler exposes calendar admin and lookup endpoints.
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
	r.Get("/non-working-days", h.list)
	r.Post("/non-working-days", h.create)
	r.Delete("/non-working-days/{id}", h.remove)
	r.Get("/next-working-day", h.nextWorkingDay)
}

type createNonWorkingDayRequest struct {
	Day         string `json:"day" validate:"required"`
	Description string `json:"description" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	days, err := h.service.ListNonWorkingDays(r.Context())
	if err != nil {
		h.logger.Error("list non-working days", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"non_working_days": days})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createNonWorkingDayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	day, err := time.Parse("2006-01-02", req.Day)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: day must be YYYY-MM-DD", shared.ErrValidation))
		return
	}
	created, err := h.service.AddNonWorkingDay(r.Context(), day, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid id", shared.ErrValidation))
		return
	}
	if err := h.service.RemoveNonWorkingDay(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) nextWorkingDay(w http.ResponseWriter, r *http.Request) {
	fromParam := r.URL.Query().Get("from")
	from := time.Now()
	if fromParam != "" {
		parsed, err := time.Parse("2006-01-02", fromParam)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: from must be YYYY-MM-DD", shared.ErrValidation))
			return
		}
		from = parsed
	}
	next, err := h.service.NextWorkingDay(r.Context(), from)
	if err != nil {
		h.logger.Error("next working day", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"next_working_day": next.Format("2006-01-02")})
}
