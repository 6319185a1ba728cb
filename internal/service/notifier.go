package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/metrics"
	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReminderWindow порог напоминания и диапазон минут до начала, в котором
// оно считается своевременным. Диапазон шире одной минуты, чтобы проход
// с шагом в несколько минут не проскакивал порог.
type ReminderWindow struct {
	Threshold  int
	MinMinutes int
	MaxMinutes int
}

// DefaultReminderWindows напоминания за 15 и за 30 минут
var DefaultReminderWindows = []ReminderWindow{
	{Threshold: 15, MinMinutes: 13, MaxMinutes: 17},
	{Threshold: 30, MinMinutes: 28, MaxMinutes: 32},
}

// Notifier ищет назначенные заказы с близким началом и рассылает напоминания
// мастеру и клиенту. Журнал ReminderLog не даёт повторно отправить напоминание
// (заказ, время начала, порог, получатель) после успешной отправки. Если
// отправка упала, запись снимается и следующий проход повторяет её целиком,
// поэтому получатель может увидеть напоминание дважды.
type Notifier struct {
	orders    OrderStore
	users     UserStore
	reminders ReminderLog
	events    EventSink
	clock     Clock
	windows   []ReminderWindow
	logger    *zap.Logger
}

func NewNotifier(
	orders OrderStore,
	users UserStore,
	reminders ReminderLog,
	events EventSink,
	clock Clock,
	windows []ReminderWindow,
	logger *zap.Logger,
) *Notifier {
	if len(windows) == 0 {
		windows = DefaultReminderWindows
	}
	return &Notifier{
		orders:    orders,
		users:     users,
		reminders: reminders,
		events:    events,
		clock:     clock,
		windows:   windows,
		logger:    logger,
	}
}

// SweepResult итог одного прохода
type SweepResult struct {
	Scanned int
	Sent    int
	Failed  int
}

// Sweep один проход уведомлений. Ошибка по отдельному заказу логируется и
// не прерывает проход; ошибка возвращается только если не удалось получить заказы.
func (n *Notifier) Sweep(ctx context.Context) (SweepResult, error) {
	now := n.clock.Now()

	maxMinutes := 0
	for _, w := range n.windows {
		if w.MaxMinutes > maxMinutes {
			maxMinutes = w.MaxMinutes
		}
	}
	horizon := now.Add(time.Duration(maxMinutes+1)*time.Minute - time.Nanosecond)

	orders, err := n.orders.FindByStatusAndScheduledRange(ctx, model.OrderStatusAssigned, now, horizon)
	if err != nil {
		return SweepResult{}, fmt.Errorf("find upcoming orders: %w", err)
	}

	result := SweepResult{Scanned: len(orders)}
	for _, order := range orders {
		sent, err := n.processOrder(ctx, order, now)
		result.Sent += sent
		if err != nil {
			result.Failed++
			n.logger.Error("Failed to process upcoming order",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
	}

	n.logger.Debug("Upcoming orders sweep finished",
		zap.Time("now", now),
		zap.Int("scanned", result.Scanned),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}

// Run обёртка Sweep для фонового планировщика
func (n *Notifier) Run(ctx context.Context) error {
	_, err := n.Sweep(ctx)
	return err
}

func (n *Notifier) matchWindow(minutesUntil int) (ReminderWindow, bool) {
	for _, w := range n.windows {
		if minutesUntil >= w.MinMinutes && minutesUntil <= w.MaxMinutes {
			return w, true
		}
	}
	return ReminderWindow{}, false
}

type reminderTarget struct {
	role         model.RecipientRole
	recipientID  uuid.UUID
	counterparty *model.Counterparty
}

func (n *Notifier) processOrder(ctx context.Context, order *model.Order, now time.Time) (int, error) {
	if order.ScheduledAt == nil {
		return 0, fmt.Errorf("order has no scheduled time")
	}

	minutesUntil := int(order.ScheduledAt.Sub(now) / time.Minute)
	window, ok := n.matchWindow(minutesUntil)
	if !ok {
		return 0, nil
	}

	client, err := n.counterparty(ctx, order.ClientID)
	if err != nil {
		return 0, fmt.Errorf("load client: %w", err)
	}

	var targets []reminderTarget
	if order.MasterID != nil {
		master, err := n.counterparty(ctx, *order.MasterID)
		if err != nil {
			return 0, fmt.Errorf("load master: %w", err)
		}
		targets = append(targets,
			reminderTarget{role: model.RecipientMaster, recipientID: *order.MasterID, counterparty: client},
			reminderTarget{role: model.RecipientClient, recipientID: order.ClientID, counterparty: master},
		)
	} else {
		targets = append(targets, reminderTarget{role: model.RecipientClient, recipientID: order.ClientID})
	}

	sent := 0
	var errs []error
	for _, target := range targets {
		ok, err := n.remind(ctx, order, target, window.Threshold, minutesUntil)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			sent++
		}
	}

	return sent, errors.Join(errs...)
}

func (n *Notifier) counterparty(ctx context.Context, userID uuid.UUID) (*model.Counterparty, error) {
	user, err := n.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return &model.Counterparty{ID: userID}, nil
	}
	return &model.Counterparty{
		ID:    user.ID,
		Name:  user.DisplayName(),
		Phone: user.Phone,
	}, nil
}

// remind отправляет одно напоминание. false - уже было отправлено раньше.
func (n *Notifier) remind(ctx context.Context, order *model.Order, target reminderTarget, threshold, minutesUntil int) (bool, error) {
	scheduledAt := *order.ScheduledAt
	claimed, err := n.reminders.Claim(ctx, order.ID, scheduledAt, threshold, target.role)
	if err != nil {
		return false, fmt.Errorf("claim %s reminder: %w", target.role, err)
	}
	if !claimed {
		return false, nil
	}

	event := model.ReminderEvent{
		OrderID:      order.ID,
		RecipientID:  target.recipientID,
		Role:         target.role,
		ScheduledAt:  scheduledAt,
		MinutesUntil: minutesUntil,
		Threshold:    threshold,
		Counterparty: target.counterparty,
	}

	if err := n.events.Emit(ctx, model.EventUpcomingReminder, event); err != nil {
		// снимаем отметку, чтобы следующий проход повторил отправку
		if uerr := n.reminders.Unclaim(ctx, order.ID, scheduledAt, threshold, target.role); uerr != nil {
			n.logger.Error("Failed to unclaim reminder",
				zap.String("order_id", order.ID.String()),
				zap.Error(uerr),
			)
		}
		return false, fmt.Errorf("emit %s reminder: %w", target.role, err)
	}

	metrics.RemindersSent.WithLabelValues(strconv.Itoa(threshold), string(target.role)).Inc()

	n.logger.Info("Upcoming order reminder sent",
		zap.String("order_id", order.ID.String()),
		zap.String("recipient_id", target.recipientID.String()),
		zap.String("role", string(target.role)),
		zap.Int("minutes_until", minutesUntil),
		zap.Int("threshold", threshold),
	)

	return true, nil
}
