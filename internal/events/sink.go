// Package events доставка событий движка бронирования во внешние системы
package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"go.uber.org/zap"
)

// Sink получатель событий
type Sink interface {
	Emit(ctx context.Context, eventType model.EventType, payload any) error
}

// Fanout отправляет событие во все получатели и собирает ошибки.
// Доставка "хотя бы один раз": при ошибке любого получателя вызывающий
// повторяет отправку целиком, и получатели, принявшие событие в прошлый раз,
// получат его снова. Повторы отсекаются по dedup_key.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, eventType model.EventType, payload any) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Emit(ctx, eventType, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink пишет события в лог
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, eventType model.EventType, payload any) error {
	s.logger.Info("Event emitted",
		zap.String("event_type", string(eventType)),
		zap.Any("payload", payload),
	)
	return nil
}

// dedupKey одинаков для повторных отправок одного и того же события
func dedupKey(eventType model.EventType, payload any) string {
	switch p := payload.(type) {
	case model.BookedEvent:
		return fmt.Sprintf("%s:%s:%s:%d", eventType, p.OrderID, p.SlotID, p.ScheduledAt.Unix())
	case model.ReminderEvent:
		return fmt.Sprintf("%s:%s:%d:%d:%s", eventType, p.OrderID, p.ScheduledAt.Unix(), p.Threshold, p.Role)
	default:
		return ""
	}
}

// eventKey ключ партиционирования события (id заказа)
func eventKey(payload any) string {
	switch p := payload.(type) {
	case model.BookedEvent:
		return p.OrderID.String()
	case model.ReminderEvent:
		return p.OrderID.String()
	default:
		return ""
	}
}
