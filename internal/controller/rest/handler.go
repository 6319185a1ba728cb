// Package rest HTTP API движка бронирования
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/metrics"
	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/Freeeeeet/master_scheduler/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	generator *service.SlotGenerator
	booking   *service.BookingService
	slots     *service.SlotManager
	logger    *zap.Logger
}

func NewHandler(
	generator *service.SlotGenerator,
	booking *service.BookingService,
	slots *service.SlotManager,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		generator: generator,
		booking:   booking,
		slots:     slots,
		logger:    logger,
	}
}

// Router собирает chi роутер со всеми маршрутами
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	h.Routes(r)
	return r
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/masters/{masterID}/slots", func(r chi.Router) {
			r.Get("/", h.handleListSlots)
			r.Post("/generate", h.handleGenerateSlots)
			r.Post("/book", h.handleBookSlot)
			r.Post("/{slotID}/block", h.handleBlockSlot)
			r.Post("/{slotID}/unblock", h.handleUnblockSlot)
		})
		r.Post("/orders/{orderID}/release-slots", h.handleReleaseSlots)
		r.Get("/users/{userID}/upcoming-orders", h.handleUpcomingOrders)
	})
}

// maxGenerateDays сколько календарных дней можно сгенерировать за один запрос
const maxGenerateDays = 90

type generateSlotsRequest struct {
	StartDate       string              `json:"start_date"`
	EndDate         string              `json:"end_date"`
	DurationMinutes int                 `json:"duration_minutes"`
	WorkingHours    *model.WorkingHours `json:"working_hours"`
}

type bookSlotRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	OrderID   uuid.UUID `json:"order_id"`
}

type slotsResponse struct {
	Slots []*model.ScheduleSlot `json:"slots"`
}

type ordersResponse struct {
	Orders []*model.Order `json:"orders"`
}

func (h *Handler) handleGenerateSlots(w http.ResponseWriter, r *http.Request) {
	masterID, ok := uuidParam(w, r, "masterID")
	if !ok {
		return
	}

	var req generateSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_date")
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end_date")
		return
	}
	if endDate.Sub(startDate) >= maxGenerateDays*24*time.Hour {
		writeError(w, http.StatusBadRequest, "range_too_large")
		return
	}
	if req.DurationMinutes < 0 {
		writeError(w, http.StatusBadRequest, "invalid_duration")
		return
	}

	created, err := h.generator.GenerateSlots(r.Context(), service.GenerateParams{
		MasterID:     masterID,
		StartDate:    startDate,
		EndDate:      endDate,
		SlotDuration: time.Duration(req.DurationMinutes) * time.Minute,
		WorkingHours: req.WorkingHours,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, slotsResponse{Slots: nonNil(created)})
}

func (h *Handler) handleListSlots(w http.ResponseWriter, r *http.Request) {
	masterID, ok := uuidParam(w, r, "masterID")
	if !ok {
		return
	}

	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from")
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to")
		return
	}

	var slots []*model.ScheduleSlot
	switch q.Get("status") {
	case "", "available":
		slots, err = h.booking.ListAvailableSlots(r.Context(), masterID, from, to)
	case "all":
		slots, err = h.booking.ListAllSlots(r.Context(), masterID, from, to)
	default:
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, slotsResponse{Slots: nonNil(slots)})
}

func (h *Handler) handleBookSlot(w http.ResponseWriter, r *http.Request) {
	masterID, ok := uuidParam(w, r, "masterID")
	if !ok {
		return
	}

	var req bookSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if req.OrderID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "order_id_required")
		return
	}

	slot, err := h.booking.BookSlot(r.Context(), masterID, req.StartTime, req.EndTime, req.OrderID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, slot)
}

func (h *Handler) handleBlockSlot(w http.ResponseWriter, r *http.Request) {
	h.handleSlotTransition(w, r, h.slots.BlockSlot)
}

func (h *Handler) handleUnblockSlot(w http.ResponseWriter, r *http.Request) {
	h.handleSlotTransition(w, r, h.slots.UnblockSlot)
}

type slotTransition func(ctx context.Context, slotID, masterID uuid.UUID) (*model.ScheduleSlot, error)

func (h *Handler) handleSlotTransition(w http.ResponseWriter, r *http.Request, transition slotTransition) {
	masterID, ok := uuidParam(w, r, "masterID")
	if !ok {
		return
	}
	slotID, ok := uuidParam(w, r, "slotID")
	if !ok {
		return
	}

	slot, err := transition(r.Context(), slotID, masterID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, slot)
}

func (h *Handler) handleReleaseSlots(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}

	if err := h.slots.ReleaseSlotsForOrder(r.Context(), orderID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpcomingOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "userID")
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}

	orders, err := h.booking.ListUpcomingOrders(r.Context(), userID, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ordersResponse{Orders: nonNil(orders)})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found")
	case errors.Is(err, service.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found")
	case errors.Is(err, service.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict")
	case errors.Is(err, service.ErrInvalidTimeRange):
		writeError(w, http.StatusUnprocessableEntity, "invalid_time_range")
	default:
		h.logger.Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name)
		return uuid.Nil, false
	}
	return id, true
}

// parseDate принимает дату "2006-01-02" или полный RFC3339
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
