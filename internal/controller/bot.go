package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/master_scheduler/internal/events"
	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/Freeeeeet/master_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type telegramUsers interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

type BotController struct {
	bot     *bot.Bot
	users   telegramUsers
	booking *service.BookingService
	logger  *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	users telegramUsers,
	booking *service.BookingService,
	logger *zap.Logger,
) *BotController {
	return &BotController{
		bot:     botInstance,
		users:   users,
		booking: booking,
		logger:  logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/upcoming", bot.MatchTypeExact, c.handleUpcoming)

	// Устанавливаем меню команд
	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "upcoming", Description: "📅 Ближайшие заказы"},
		{Command: "help", Description: "❓ Справка по командам"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("Bot commands menu set")
	return nil
}

// Start запускает бота, блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
}

func (c *BotController) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	c.reply(ctx, b, update.Message.Chat.ID,
		"Я присылаю напоминания о заказах за 30 и 15 минут до начала.\n\n/upcoming - ближайшие заказы")
}

func (c *BotController) handleUpcoming(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	if update.Message.From == nil {
		return
	}

	user, err := c.users.GetByTelegramID(ctx, update.Message.From.ID)
	if err != nil {
		c.logger.Error("Failed to get user", zap.Int64("telegram_id", update.Message.From.ID), zap.Error(err))
		c.reply(ctx, b, chatID, "❌ Не удалось загрузить заказы, попробуйте позже")
		return
	}
	if user == nil {
		c.reply(ctx, b, chatID, "Аккаунт не привязан к Telegram")
		return
	}

	orders, err := c.booking.ListUpcomingOrders(ctx, user.ID, service.DefaultUpcomingLimit)
	if err != nil {
		c.logger.Error("Failed to list upcoming orders", zap.String("user_id", user.ID.String()), zap.Error(err))
		c.reply(ctx, b, chatID, "❌ Не удалось загрузить заказы, попробуйте позже")
		return
	}

	c.reply(ctx, b, chatID, FormatUpcoming(orders))
}

// FormatUpcoming текст списка ближайших заказов
func FormatUpcoming(orders []*model.Order) string {
	if len(orders) == 0 {
		return "Ближайших заказов нет"
	}

	var sb strings.Builder
	sb.WriteString("📅 <b>Ближайшие заказы</b>\n")
	for i, order := range orders {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, events.FormatDateTime(*order.ScheduledAt))
	}
	return sb.String()
}

func (c *BotController) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		c.logger.Warn("Failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
