package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSlotBooked       EventType = "slot.booked"
	EventUpcomingReminder EventType = "order.upcoming_reminder"
)

type RecipientRole string

const (
	RecipientMaster RecipientRole = "master"
	RecipientClient RecipientRole = "client"
)

// BookedEvent отправляется после успешного бронирования слота
type BookedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	MasterID    uuid.UUID `json:"master_id"`
	SlotID      uuid.UUID `json:"slot_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Counterparty данные второй стороны заказа (мастер для клиента и наоборот)
type Counterparty struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone,omitempty"`
}

// ReminderEvent напоминание о скором начале заказа
type ReminderEvent struct {
	OrderID      uuid.UUID     `json:"order_id"`
	RecipientID  uuid.UUID     `json:"recipient_id"`
	Role         RecipientRole `json:"role"`
	ScheduledAt  time.Time     `json:"scheduled_at"`
	MinutesUntil int           `json:"minutes_until"`
	Threshold    int           `json:"threshold"`
	Counterparty *Counterparty `json:"counterparty,omitempty"`
}
