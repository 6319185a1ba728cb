package events

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type userFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// TelegramSink отправляет уведомления получателям в Telegram
type TelegramSink struct {
	bot    messageSender
	users  userFinder
	logger *zap.Logger
}

func NewTelegramSink(b messageSender, users userFinder, logger *zap.Logger) *TelegramSink {
	return &TelegramSink{
		bot:    b,
		users:  users,
		logger: logger,
	}
}

func (s *TelegramSink) Emit(ctx context.Context, eventType model.EventType, payload any) error {
	var (
		recipientID uuid.UUID
		text        string
	)

	switch p := payload.(type) {
	case model.BookedEvent:
		recipientID = p.MasterID
		text = FormatBooked(p)
	case model.ReminderEvent:
		recipientID = p.RecipientID
		text = FormatReminder(p)
	default:
		s.logger.Debug("Event is not delivered to telegram", zap.String("event_type", string(eventType)))
		return nil
	}

	user, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("get recipient: %w", err)
	}
	if user == nil || user.TelegramID == nil {
		s.logger.Debug("Recipient has no telegram account",
			zap.String("recipient_id", recipientID.String()),
			zap.String("event_type", string(eventType)),
		)
		return nil
	}

	_, err = s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    *user.TelegramID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatDateTime форматирует дату и время
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// FormatBooked текст уведомления мастеру о новой записи
func FormatBooked(e model.BookedEvent) string {
	return fmt.Sprintf("📅 <b>Новая запись</b>\n\nЗаказ: <code>%s</code>\nВремя: %s",
		e.OrderID, FormatDateTime(e.ScheduledAt))
}

// FormatReminder текст напоминания о скором начале заказа
func FormatReminder(e model.ReminderEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "⏰ <b>Через %d мин начало заказа</b>\n\n", e.MinutesUntil)
	fmt.Fprintf(&sb, "Время: %s\n", FormatDateTime(e.ScheduledAt))

	if e.Counterparty != nil && e.Counterparty.Name != "" {
		label := "Клиент"
		if e.Role == model.RecipientClient {
			label = "Мастер"
		}
		fmt.Fprintf(&sb, "%s: %s", label, html.EscapeString(e.Counterparty.Name))
		if e.Counterparty.Phone != "" {
			fmt.Fprintf(&sb, ", %s", html.EscapeString(e.Counterparty.Phone))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
