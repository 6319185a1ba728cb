package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/metrics"
	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultUpcomingLimit = 10
	MaxUpcomingLimit     = 100
)

type BookingService struct {
	slots  SlotStore
	orders OrderStore
	tx     Transactor
	events EventSink
	clock  Clock
	logger *zap.Logger
}

func NewBookingService(
	slots SlotStore,
	orders OrderStore,
	tx Transactor,
	events EventSink,
	clock Clock,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		slots:  slots,
		orders: orders,
		tx:     tx,
		events: events,
		clock:  clock,
		logger: logger,
	}
}

// BookSlot бронирует слот мастера, начинающийся в startTime, за заказом
// orderID. Запрошенный интервал должен целиком лежать внутри слота.
// Статус слота и scheduled_at заказа меняются в одной транзакции; слот
// переводится в booked условным обновлением, поэтому из параллельных
// запросов на один слот успешен только один.
func (s *BookingService) BookSlot(ctx context.Context, masterID uuid.UUID, startTime, endTime time.Time, orderID uuid.UUID) (*model.ScheduleSlot, error) {
	slot, err := s.bookSlot(ctx, masterID, startTime, endTime, orderID)
	metrics.BookingAttempts.WithLabelValues(bookingResult(err)).Inc()
	if err != nil {
		fields := []zap.Field{
			zap.String("master_id", masterID.String()),
			zap.String("order_id", orderID.String()),
			zap.Time("start_time", startTime),
			zap.Time("end_time", endTime),
			zap.Error(err),
		}
		if isCallerError(err) {
			s.logger.Warn("Slot booking rejected", fields...)
		} else {
			s.logger.Error("Slot booking failed", fields...)
		}
		return nil, err
	}

	s.logger.Info("Slot booked",
		zap.String("slot_id", slot.ID.String()),
		zap.String("master_id", masterID.String()),
		zap.String("order_id", orderID.String()),
		zap.Time("start_time", slot.StartTime),
	)

	// Бронь уже закоммичена, ошибка доставки события её не отменяет
	event := model.BookedEvent{
		OrderID:     orderID,
		MasterID:    masterID,
		SlotID:      slot.ID,
		ScheduledAt: startTime,
	}
	if err := s.events.Emit(ctx, model.EventSlotBooked, event); err != nil {
		s.logger.Error("Failed to emit booked event",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
	}

	return slot, nil
}

func (s *BookingService) bookSlot(ctx context.Context, masterID uuid.UUID, startTime, endTime time.Time, orderID uuid.UUID) (*model.ScheduleSlot, error) {
	if !endTime.After(startTime) {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrInvalidTimeRange)
	}

	var booked *model.ScheduleSlot
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if order == nil {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}

		slot, err := s.slots.FindByMasterAndStart(ctx, masterID, startTime)
		if err != nil {
			return fmt.Errorf("find slot: %w", err)
		}
		if slot == nil {
			// время попадает внутрь чужого слота: интервал не выровнен по слоту
			covering, err := s.slots.FindCovering(ctx, masterID, startTime)
			if err != nil {
				return fmt.Errorf("find covering slot: %w", err)
			}
			if covering != nil {
				return fmt.Errorf("%w: requested window is outside slot %s", ErrInvalidTimeRange, covering.ID)
			}
			return fmt.Errorf("%w: master %s at %s", ErrSlotNotFound, masterID, startTime.Format(time.RFC3339))
		}

		if slot.Status != model.SlotStatusAvailable {
			return fmt.Errorf("%w: slot %s is %s", ErrSlotConflict, slot.ID, slot.Status)
		}

		if !slot.Contains(startTime, endTime) {
			return fmt.Errorf("%w: requested window is outside slot %s", ErrInvalidTimeRange, slot.ID)
		}

		// Перебронирование: заказ не может держать два слота одновременно
		released, err := s.slots.ReleaseByOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("release previous slots: %w", err)
		}
		for _, prev := range released {
			s.logger.Info("Previous slot released for rebooking",
				zap.String("slot_id", prev.ID.String()),
				zap.String("order_id", orderID.String()),
			)
		}

		booked, err = s.slots.Book(ctx, slot.ID, orderID)
		if err != nil {
			return fmt.Errorf("book slot: %w", err)
		}
		if booked == nil {
			// слот заняли между чтением и обновлением
			return fmt.Errorf("%w: slot %s was taken concurrently", ErrSlotConflict, slot.ID)
		}

		updated, err := s.orders.SetScheduledAt(ctx, orderID, startTime)
		if err != nil {
			return fmt.Errorf("set order scheduled time: %w", err)
		}
		if !updated {
			// заказ удалили после GetByID
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return booked, nil
}

// ListAvailableSlots свободные слоты мастера с началом в [from, to)
func (s *BookingService) ListAvailableSlots(ctx context.Context, masterID uuid.UUID, from, to time.Time) ([]*model.ScheduleSlot, error) {
	status := model.SlotStatusAvailable
	return s.slots.ListByMaster(ctx, masterID, from, to, &status)
}

// ListAllSlots все слоты мастера с началом в [from, to)
func (s *BookingService) ListAllSlots(ctx context.Context, masterID uuid.UUID, from, to time.Time) ([]*model.ScheduleSlot, error) {
	return s.slots.ListByMaster(ctx, masterID, from, to, nil)
}

// ListUpcomingOrders ближайшие назначенные заказы пользователя (мастера или клиента)
func (s *BookingService) ListUpcomingOrders(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	if limit > MaxUpcomingLimit {
		limit = MaxUpcomingLimit
	}
	return s.orders.ListUpcoming(ctx, userID, model.OrderStatusAssigned, s.clock.Now(), limit)
}

func isCallerError(err error) bool {
	return errors.Is(err, ErrSlotNotFound) ||
		errors.Is(err, ErrSlotConflict) ||
		errors.Is(err, ErrInvalidTimeRange) ||
		errors.Is(err, ErrOrderNotFound)
}

func bookingResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotConflict):
		return "conflict"
	case errors.Is(err, ErrSlotNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTimeRange):
		return "invalid_range"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	default:
		return "error"
	}
}
