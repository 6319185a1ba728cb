package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/google/uuid"
)

// SlotStore хранилище слотов. Методы изменения статуса условные: если
// переход невозможен, они возвращают (nil, nil) и ничего не меняют.
type SlotStore interface {
	CreateBatch(ctx context.Context, slots []*model.ScheduleSlot) ([]*model.ScheduleSlot, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduleSlot, error)
	FindByMasterAndStart(ctx context.Context, masterID uuid.UUID, startTime time.Time) (*model.ScheduleSlot, error)
	FindCovering(ctx context.Context, masterID uuid.UUID, t time.Time) (*model.ScheduleSlot, error)
	ListByMaster(ctx context.Context, masterID uuid.UUID, from, to time.Time, status *model.SlotStatus) ([]*model.ScheduleSlot, error)
	Book(ctx context.Context, slotID, orderID uuid.UUID) (*model.ScheduleSlot, error)
	ReleaseByOrder(ctx context.Context, orderID uuid.UUID) ([]*model.ScheduleSlot, error)
	Block(ctx context.Context, slotID, masterID uuid.UUID) (*model.ScheduleSlot, error)
	Unblock(ctx context.Context, slotID, masterID uuid.UUID) (*model.ScheduleSlot, error)
}

// OrderStore внешний сервис заказов
type OrderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// SetScheduledAt возвращает false, если заказа не существует
	SetScheduledAt(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (bool, error)
	FindByStatusAndScheduledRange(ctx context.Context, status model.OrderStatus, from, to time.Time) ([]*model.Order, error)
	ListUpcoming(ctx context.Context, userID uuid.UUID, status model.OrderStatus, from time.Time, limit int) ([]*model.Order, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListMasters(ctx context.Context) ([]*model.User, error)
}

// ReminderLog журнал отправленных напоминаний. Ключ включает время начала
// заказа: после перебронирования напоминания для нового времени уходят заново.
type ReminderLog interface {
	Claim(ctx context.Context, orderID uuid.UUID, scheduledAt time.Time, threshold int, role model.RecipientRole) (bool, error)
	Unclaim(ctx context.Context, orderID uuid.UUID, scheduledAt time.Time, threshold int, role model.RecipientRole) error
}

// Transactor выполняет fn атомарно для всех хранилищ, получивших ctx из fn
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventSink получатель событий для внешней доставки
type EventSink interface {
	Emit(ctx context.Context, eventType model.EventType, payload any) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock часы реального времени
var SystemClock Clock = systemClock{}
