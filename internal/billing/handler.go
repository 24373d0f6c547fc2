package billing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aravali-saas/aravali/internal/platform/httpx"
	"github.com/aravali-saas/aravali/internal/shared"
)

// MetricsRecorder receives billing domain counters. Implemented by the
// observability package; nil disables recording.
type MetricsRecorder interface {
	BillsGenerated(societyID int64, generated, skipped int)
	PaymentRecorded(societyID int64)
}

// Handler manages billing endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  MetricsRecorder
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics MetricsRecorder) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/config", h.getConfig)
	r.Put("/config", h.updateConfig)

	r.Post("/bills/bulk", h.generateBills)
	r.Post("/bills", h.generateBillForUnit)
	r.Get("/bills", h.listBills)
	r.Get("/bills/{id}", h.showBill)
	r.Post("/bills/{id}/payments", h.recordPayment)

	r.Post("/payments/{id}/clear", h.clearPayment)
}

// --- Configuration ---

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	sc := shared.SocietyFromContext(r.Context())
	if sc == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	cfg, err := h.service.GetConfig(r.Context(), sc.ID)
	if err != nil {
		h.logger.Error("get billing config", slog.Any("error", err), slog.Int64("society_id", sc.ID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

type configPayload struct {
	ChargeHeads   []chargeHeadPayload `json:"chargeHeads"`
	DefaultDueDay *int                `json:"defaultDueDay" validate:"omitempty,min=1,max=28"`
	LateFee       *LateFeePatch       `json:"lateFee"`
}

type chargeHeadPayload struct {
	Name             string  `json:"name" validate:"required"`
	Type             string  `json:"computationType" validate:"required,oneof=per_area fixed percentage_of"`
	Rate             float64 `json:"rate" validate:"gte=0"`
	PercentageOf     string  `json:"percentageOf"`
	NonOccupancyOnly bool    `json:"nonOccupancyOnly"`
	SinkingFund      bool    `json:"sinkingFund"`
	Active           *bool   `json:"active"`
}

func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	sc := shared.SocietyFromContext(r.Context())
	if sc == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var payload configPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	patch := ConfigPatch{
		DefaultDueDay: payload.DefaultDueDay,
		LateFee:       payload.LateFee,
	}
	if payload.ChargeHeads != nil {
		patch.ChargeHeads = make([]ChargeHead, 0, len(payload.ChargeHeads))
		for i, hp := range payload.ChargeHeads {
			active := true
			if hp.Active != nil {
				active = *hp.Active
			}
			patch.ChargeHeads = append(patch.ChargeHeads, ChargeHead{
				Name:             hp.Name,
				Type:             ComputationType(hp.Type),
				Rate:             hp.Rate,
				PercentageOf:     hp.PercentageOf,
				NonOccupancyOnly: hp.NonOccupancyOnly,
				SinkingFund:      hp.SinkingFund,
				Active:           active,
				Position:         i,
			})
		}
	}

	cfg, err := h.service.UpdateConfig(r.Context(), sc.ID, patch)
	if err != nil {
		if errors.Is(err, httpx.ErrValidation) {
			httpx.RespondError(w, err)
			return
		}
		h.logger.Error("update billing config", slog.Any("error", err), slog.Int64("society_id", sc.ID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

// --- Generation ---

type generatePayload struct {
	BillingPeriod string `json:"billingPeriod" validate:"required"`
	DueDate       string `json:"dueDate" validate:"required"`
	UnitID        int64  `json:"unitId"`
}

func (p generatePayload) dueDate() (time.Time, error) {
	return time.Parse("2006-01-02", p.DueDate)
}

func (h *Handler) generateBills(w http.ResponseWriter, r *http.Request) {
	sc := shared.SocietyFromContext(r.Context())
	if sc == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var payload generatePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	dueDate, err := payload.dueDate()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dueDate must be YYYY-MM-DD")
		return
	}

	summary, err := h.service.GenerateBills(r.Context(), sc.ID, GenerateInput{
		BillingPeriod: payload.BillingPeriod,
		DueDate:       dueDate,
	})
	if err != nil {
		h.respondGenerationError(w, err, sc.ID)
		return
	}

	if h.metrics != nil {
		h.metrics.BillsGenerated(sc.ID, summary.Generated, summary.Skipped)
	}
	h.logger.Info("bills generated",
		slog.Int64("society_id", sc.ID),
		slog.String("period", payload.BillingPeriod),
		slog.Int("generated", summary.Generated),
		slog.Int("skipped", summary.Skipped),
	)
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) generateBillForUnit(w http.ResponseWriter, r *http.Request) {
	sc := shared.SocietyFromContext(r.Context())
	if sc == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var payload generatePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if payload.UnitID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unitId required")
		return
	}
	dueDate, err := payload.dueDate()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dueDate must be YYYY-MM-DD")
		return
	}

	bill, err := h.service.GenerateBillForUnit(r.Context(), sc.ID, payload.UnitID, GenerateInput{
		BillingPeriod: payload.BillingPeriod,
		DueDate:       dueDate,
	})
	if err != nil {
		if errors.Is(err, ErrBillExists) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.respondGenerationError(w, err, sc.ID)
		return
	}
	if h.metrics != nil {
		h.metrics.BillsGenerated(sc.ID, 1, 0)
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) respondGenerationError(w http.ResponseWriter, err error, societyID int64) {
	switch {
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	case errors.Is(err, ErrConfigurationMissing), errors.Is(err, ErrNoUnitsFound):
		httpx.Problem(w, http.StatusBadRequest, "Cannot Generate Bills", err.Error())
	default:
		h.logger.Error("generate bills", slog.Any("error", err), slog.Int64("society_id", societyID))
		httpx.RespondError(w, err)
	}
}

// --- Reads ---

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
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
	unitID, _ := strconv.ParseInt(r.URL.Query().Get("unit_id"), 10, 64)

	bills, total, err := h.service.ListBills(r.Context(), sc.ID, BillFilters{
		Period: r.URL.Query().Get("period"),
		Status: BillStatus(r.URL.Query().Get("status")),
		UnitID: unitID,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.logger.Error("list bills", slog.Any("error", err), slog.Int64("society_id", sc.ID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"bills":      bills,
		"pagination": shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) showBill(w http.ResponseWriter, r *http.Request) {
	sc := shared.SocietyFromContext(r.Context())
	if sc == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid bill id")
		return
	}

	bill, err := h.service.GetBill(r.Context(), sc.ID, id)
	if err != nil {
		if errors.Is(err, ErrBillNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get bill", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

// --- Payments ---

type paymentPayload struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Method    string `json:"method" validate:"required,oneof=cash upi card netbanking cheque"`
	Reference string `json:"reference"`
	PaidAt    string `json:"paidAt"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	sc := shared.SocietyFromContext(r.Context())
	if sc == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	billID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid bill id")
		return
	}
	var payload paymentPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var paidAt time.Time
	if payload.PaidAt != "" {
		paidAt, err = time.Parse("2006-01-02", payload.PaidAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "paidAt must be YYYY-MM-DD")
			return
		}
	}

	txn, err := h.service.RecordPayment(r.Context(), sc.ID, billID, PaymentInput{
		Amount:    payload.Amount,
		Method:    PaymentMethod(payload.Method),
		Reference: payload.Reference,
		PaidAt:    paidAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrBillNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		case errors.Is(err, ErrBillAlreadyPaid):
			httpx.Problem(w, http.StatusConflict, "Already Paid", err.Error())
		case errors.Is(err, httpx.ErrValidation):
			httpx.RespondError(w, err)
		default:
			h.logger.Error("record payment", slog.Any("error", err), slog.Int64("bill_id", billID))
			httpx.RespondError(w, err)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.PaymentRecorded(sc.ID)
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) clearPayment(w http.ResponseWriter, r *http.Request) {
	sc := shared.SocietyFromContext(r.Context())
	if sc == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	txnID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}

	if err := h.service.ClearPayment(r.Context(), sc.ID, txnID); err != nil {
		switch {
		case errors.Is(err, ErrTransactionNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		case errors.Is(err, ErrNotPendingClearance):
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		case errors.Is(err, httpx.ErrValidation):
			httpx.RespondError(w, err)
		default:
			h.logger.Error("clear payment", slog.Any("error", err), slog.Int64("txn_id", txnID))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cleared": true})
}
