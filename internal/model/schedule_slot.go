package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "available"
	SlotStatusBooked    SlotStatus = "booked"
	SlotStatusBlocked   SlotStatus = "blocked"
)

type ScheduleSlot struct {
	ID        uuid.UUID  `json:"id"`
	MasterID  uuid.UUID  `json:"master_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	Status    SlotStatus `json:"status"`
	OrderID   *uuid.UUID `json:"order_id"` // заполнен только у забронированного слота
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Contains проверяет, что интервал [start, end) целиком лежит внутри слота
func (s *ScheduleSlot) Contains(start, end time.Time) bool {
	return !start.Before(s.StartTime) && !end.After(s.EndTime)
}
