package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/master_scheduler/internal/metrics"
	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SlotManager освобождение слотов отменённых заказов и ручная блокировка
type SlotManager struct {
	slots  SlotStore
	logger *zap.Logger
}

func NewSlotManager(slots SlotStore, logger *zap.Logger) *SlotManager {
	return &SlotManager{
		slots:  slots,
		logger: logger,
	}
}

// ReleaseSlotsForOrder освобождает все слоты заказа. Повторный вызов ничего не делает.
func (m *SlotManager) ReleaseSlotsForOrder(ctx context.Context, orderID uuid.UUID) error {
	released, err := m.slots.ReleaseByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("release slots: %w", err)
	}

	if len(released) == 0 {
		m.logger.Debug("No slots to release", zap.String("order_id", orderID.String()))
		return nil
	}

	metrics.SlotTransitions.WithLabelValues("release").Add(float64(len(released)))

	for _, slot := range released {
		m.logger.Info("Slot released",
			zap.String("slot_id", slot.ID.String()),
			zap.String("master_id", slot.MasterID.String()),
			zap.String("order_id", orderID.String()),
		)
	}

	return nil
}

// BlockSlot блокирует слот мастера. Забронированный слот заблокировать нельзя.
func (m *SlotManager) BlockSlot(ctx context.Context, slotID, masterID uuid.UUID) (*model.ScheduleSlot, error) {
	slot, err := m.slots.Block(ctx, slotID, masterID)
	if err != nil {
		return nil, fmt.Errorf("block slot: %w", err)
	}

	if slot == nil {
		return nil, m.explainRejected(ctx, slotID, masterID, "cannot block a reserved slot")
	}

	metrics.SlotTransitions.WithLabelValues("block").Inc()

	m.logger.Info("Slot blocked",
		zap.String("slot_id", slotID.String()),
		zap.String("master_id", masterID.String()),
	)

	return slot, nil
}

// UnblockSlot возвращает слот мастера в свободные. Забронированный слот
// так освободить нельзя, для него есть ReleaseSlotsForOrder.
func (m *SlotManager) UnblockSlot(ctx context.Context, slotID, masterID uuid.UUID) (*model.ScheduleSlot, error) {
	slot, err := m.slots.Unblock(ctx, slotID, masterID)
	if err != nil {
		return nil, fmt.Errorf("unblock slot: %w", err)
	}

	if slot == nil {
		return nil, m.explainRejected(ctx, slotID, masterID, "cannot unblock a reserved slot, release its order first")
	}

	metrics.SlotTransitions.WithLabelValues("unblock").Inc()

	m.logger.Info("Slot unblocked",
		zap.String("slot_id", slotID.String()),
		zap.String("master_id", masterID.String()),
	)

	return slot, nil
}

// explainRejected определяет, почему условное обновление не затронуло слот
func (m *SlotManager) explainRejected(ctx context.Context, slotID, masterID uuid.UUID, conflictMsg string) error {
	slot, err := m.slots.GetByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}

	if slot == nil || slot.MasterID != masterID {
		m.logger.Warn("Slot not found for master",
			zap.String("slot_id", slotID.String()),
			zap.String("master_id", masterID.String()),
		)
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slotID)
	}

	m.logger.Warn("Slot transition rejected",
		zap.String("slot_id", slotID.String()),
		zap.String("status", string(slot.Status)),
	)
	return fmt.Errorf("%w: %s", ErrSlotConflict, conflictMsg)
}
