package units

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aravali-saas/aravali/internal/platform/httpx"
	"github.com/aravali-saas/aravali/internal/shared"
)

// Handler manages unit master-data endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers unit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.deactivate)
}

type unitPayload struct {
	Number     string  `json:"number" validate:"required"`
	AreaSqft   float64 `json:"areaSqft" validate:"required,gt=0"`
	Occupancy  string  `json:"occupancyStatus" validate:"required,oneof=vacant owner_occupied rented"`
	OwnerID    *int64  `json:"ownerId"`
	OccupantID *int64  `json:"occupantId"`
	Active     *bool   `json:"active"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sc := shared.SocietyFromContext(r.Context())
	if sc == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 20
	}
	filters := ListFilters{
		Page:      page,
		Limit:     limit,
		Search:    r.URL.Query().Get("search"),
		Occupancy: OccupancyStatus(r.URL.Query().Get("occupancy")),
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true"
		filters.Active = &active
	}

	list, total, err := h.service.List(r.Context(), sc.ID, filters)
	if err != nil {
		h.logger.Error("list units", slog.Any("error", err), slog.Int64("society_id", sc.ID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"units":      list,
		"pagination": shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	sc := shared.SocietyFromContext(r.Context())
	if sc == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid unit id")
		return
	}

	unit, err := h.service.Get(r.Context(), sc.ID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get unit", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	sc := shared.SocietyFromContext(r.Context())
	if sc == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var payload unitPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	unit, err := h.service.Create(r.Context(), Unit{
		SocietyID:  sc.ID,
		Number:     payload.Number,
		AreaSqft:   payload.AreaSqft,
		Occupancy:  OccupancyStatus(payload.Occupancy),
		OwnerID:    payload.OwnerID,
		OccupantID: payload.OccupantID,
	})
	if err != nil {
		h.logger.Error("create unit", slog.Any("error", err), slog.Int64("society_id", sc.ID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, unit)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	sc := shared.SocietyFromContext(r.Context())
	if sc == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid unit id")
		return
	}
	var payload unitPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	err = h.service.Update(r.Context(), sc.ID, id, Unit{
		Number:     payload.Number,
		AreaSqft:   payload.AreaSqft,
		Occupancy:  OccupancyStatus(payload.Occupancy),
		OwnerID:    payload.OwnerID,
		OccupantID: payload.OccupantID,
		Active:     active,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("update unit", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	sc := shared.SocietyFromContext(r.Context())
	if sc == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid unit id")
		return
	}
	if err := h.service.Deactivate(r.Context(), sc.ID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("deactivate unit", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deactivated": true})
}
