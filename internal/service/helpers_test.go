package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/Freeeeeet/master_scheduler/internal/repository/memory"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type emitted struct {
	eventType model.EventType
	payload   any
}

// recordingSink запоминает события; пока failNext > 0, Emit возвращает ошибку
type recordingSink struct {
	mu       sync.Mutex
	events   []emitted
	failNext int
}

var errSinkDown = errors.New("sink unavailable")

func (s *recordingSink) Emit(_ context.Context, eventType model.EventType, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return errSinkDown
	}
	s.events = append(s.events, emitted{eventType: eventType, payload: payload})
	return nil
}

func (s *recordingSink) reminders() []model.ReminderEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ReminderEvent
	for _, e := range s.events {
		if r, ok := e.payload.(model.ReminderEvent); ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func putSlot(store *memory.Store, masterID uuid.UUID, start time.Time, d time.Duration, status model.SlotStatus) model.ScheduleSlot {
	slot := model.ScheduleSlot{
		ID:        uuid.New(),
		MasterID:  masterID,
		StartTime: start,
		EndTime:   start.Add(d),
		Status:    status,
		CreatedAt: start,
		UpdatedAt: start,
	}
	store.PutSlot(slot)
	return slot
}

func putOrder(store *memory.Store, clientID uuid.UUID, masterID *uuid.UUID, status model.OrderStatus, scheduledAt *time.Time) model.Order {
	order := model.Order{
		ID:          uuid.New(),
		ClientID:    clientID,
		MasterID:    masterID,
		Status:      status,
		ScheduledAt: scheduledAt,
		CreatedAt:   day,
		UpdatedAt:   day,
	}
	store.PutOrder(order)
	return order
}

func newTestBooking(store *memory.Store, sink EventSink, clock Clock) *BookingService {
	return NewBookingService(store, store.Orders(), store, sink, clock, zap.NewNop())
}

func newTestGenerator(store *memory.Store, clock Clock) *SlotGenerator {
	return NewSlotGenerator(store, store.Users(), store, clock, DefaultSlotDuration, model.DefaultWorkingHours(), zap.NewNop())
}
