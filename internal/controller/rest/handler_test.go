package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/Freeeeeet/master_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/master_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopSink struct{}

func (nopSink) Emit(context.Context, model.EventType, any) error { return nil }

type staticClock time.Time

func (c staticClock) Now() time.Time { return time.Time(c) }

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	logger := zap.NewNop()
	clock := staticClock(day)

	generator := service.NewSlotGenerator(store, store.Users(), store, clock, service.DefaultSlotDuration, model.DefaultWorkingHours(), logger)
	booking := service.NewBookingService(store, store.Orders(), store, nopSink{}, clock, logger)
	slots := service.NewSlotManager(store, logger)

	srv := httptest.NewServer(NewHandler(generator, booking, slots, logger).Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestGenerateListAndBook(t *testing.T) {
	srv, store := newTestServer(t)
	masterID := uuid.New()
	base := srv.URL + "/api/v1/masters/" + masterID.String() + "/slots"

	resp := doJSON(t, http.MethodPost, base+"/generate", map[string]any{
		"start_date": "2026-03-02",
		"end_date":   "2026-03-02",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, decode[slotsResponse](t, resp).Slots, 9)

	order := model.Order{ID: uuid.New(), ClientID: uuid.New(), MasterID: &masterID, Status: model.OrderStatusAssigned}
	store.PutOrder(order)

	resp = doJSON(t, http.MethodPost, base+"/book", map[string]any{
		"start_time": "2026-03-02T10:00:00Z",
		"end_time":   "2026-03-02T11:00:00Z",
		"order_id":   order.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	booked := decode[model.ScheduleSlot](t, resp)
	assert.Equal(t, model.SlotStatusBooked, booked.Status)

	resp = doJSON(t, http.MethodGet, base+"?from=2026-03-02T00:00:00Z&to=2026-03-03T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[slotsResponse](t, resp).Slots, 8)

	resp = doJSON(t, http.MethodGet, base+"?from=2026-03-02T00:00:00Z&to=2026-03-03T00:00:00Z&status=all", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[slotsResponse](t, resp).Slots, 9)

	// второй заказ на тот же слот
	other := model.Order{ID: uuid.New(), ClientID: uuid.New(), MasterID: &masterID, Status: model.OrderStatusAssigned}
	store.PutOrder(other)
	resp = doJSON(t, http.MethodPost, base+"/book", map[string]any{
		"start_time": "2026-03-02T10:00:00Z",
		"end_time":   "2026-03-02T11:00:00Z",
		"order_id":   other.ID,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, map[string]string{"error": "slot_conflict"}, decode[map[string]string](t, resp))

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/"+masterID.String()+"/upcoming-orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	upcoming := decode[ordersResponse](t, resp).Orders
	require.Len(t, upcoming, 1)
	assert.Equal(t, order.ID, upcoming[0].ID)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/orders/"+order.ID.String()+"/release-slots", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, model.SlotStatusAvailable, store.Slot(booked.ID).Status)
}

func TestGenerateSlotsRangeLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/masters/" + uuid.New().String() + "/slots"

	resp := doJSON(t, http.MethodPost, base+"/generate", map[string]any{
		"start_date": "2026-03-02",
		"end_date":   "2026-05-31",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "range_too_large", decode[map[string]string](t, resp)["error"])

	resp = doJSON(t, http.MethodPost, base+"/generate", map[string]any{
		"start_date": "2026-03-02",
		"end_date":   "2027-03-02",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// ровно 90 дней включительно
	resp = doJSON(t, http.MethodPost, base+"/generate", map[string]any{
		"start_date": "2026-03-02",
		"end_date":   "2026-05-30",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestBookSlotErrors(t *testing.T) {
	srv, store := newTestServer(t)
	masterID := uuid.New()
	base := srv.URL + "/api/v1/masters/" + masterID.String() + "/slots"

	slot := model.ScheduleSlot{
		ID:        uuid.New(),
		MasterID:  masterID,
		StartTime: day.Add(10 * time.Hour),
		EndTime:   day.Add(11 * time.Hour),
		Status:    model.SlotStatusAvailable,
	}
	store.PutSlot(slot)
	order := model.Order{ID: uuid.New(), ClientID: uuid.New(), Status: model.OrderStatusAssigned}
	store.PutOrder(order)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{
			name:   "unknown slot",
			body:   map[string]any{"start_time": "2026-03-02T12:00:00Z", "end_time": "2026-03-02T13:00:00Z", "order_id": order.ID},
			status: http.StatusNotFound,
			code:   "slot_not_found",
		},
		{
			name:   "unknown order",
			body:   map[string]any{"start_time": "2026-03-02T10:00:00Z", "end_time": "2026-03-02T11:00:00Z", "order_id": uuid.New()},
			status: http.StatusNotFound,
			code:   "order_not_found",
		},
		{
			name:   "outside slot",
			body:   map[string]any{"start_time": "2026-03-02T10:00:00Z", "end_time": "2026-03-02T11:30:00Z", "order_id": order.ID},
			status: http.StatusUnprocessableEntity,
			code:   "invalid_time_range",
		},
		{
			name:   "missing order",
			body:   map[string]any{"start_time": "2026-03-02T10:00:00Z", "end_time": "2026-03-02T11:00:00Z"},
			status: http.StatusBadRequest,
			code:   "order_id_required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, base+"/book", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[map[string]string](t, resp)["error"])
		})
	}
}

func TestBlockUnblock(t *testing.T) {
	srv, store := newTestServer(t)
	masterID := uuid.New()
	orderID := uuid.New()

	free := model.ScheduleSlot{ID: uuid.New(), MasterID: masterID, StartTime: day.Add(9 * time.Hour), EndTime: day.Add(10 * time.Hour), Status: model.SlotStatusAvailable}
	booked := model.ScheduleSlot{ID: uuid.New(), MasterID: masterID, StartTime: day.Add(10 * time.Hour), EndTime: day.Add(11 * time.Hour), Status: model.SlotStatusBooked, OrderID: &orderID}
	store.PutSlot(free)
	store.PutSlot(booked)

	slotURL := func(id uuid.UUID) string {
		return srv.URL + "/api/v1/masters/" + masterID.String() + "/slots/" + id.String()
	}

	resp := doJSON(t, http.MethodPost, slotURL(free.ID)+"/block", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.SlotStatusBlocked, decode[model.ScheduleSlot](t, resp).Status)

	resp = doJSON(t, http.MethodPost, slotURL(free.ID)+"/unblock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.SlotStatusAvailable, decode[model.ScheduleSlot](t, resp).Status)

	resp = doJSON(t, http.MethodPost, slotURL(booked.ID)+"/block", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, slotURL(uuid.New())+"/block", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/masters/not-a-uuid/slots/"+free.ID.String()+"/block", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_masterID", decode[map[string]string](t, resp)["error"])
}

func TestListSlotsValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/masters/" + uuid.New().String() + "/slots"

	resp := doJSON(t, http.MethodGet, base+"?from=yesterday&to=2026-03-03T00:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"?from=2026-03-02T00:00:00Z&to=2026-03-03T00:00:00Z&status=booked", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"?from=2026-03-02T00:00:00Z&to=2026-03-03T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "{\"slots\":[]}\n", readBody(t, resp))
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}
