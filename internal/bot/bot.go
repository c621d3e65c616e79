// Package bot связывает Telegram-бота с сервисом заказов.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/mmeshcher/choyxona-bot/internal/model"
	"github.com/mmeshcher/choyxona-bot/internal/receipt"
	"github.com/mmeshcher/choyxona-bot/internal/repository"
	"github.com/mmeshcher/choyxona-bot/internal/service"
	"github.com/mmeshcher/choyxona-bot/internal/validation"
)

const (
	greetingText    = "Assalomu alaykum! Web App orqali buyurtmalarni qabul qilish uchun tugmani bosing."
	orderButtonText = "🧾 Buyurtma yaratish"
)

// Service определяет контракт бизнес-логики, используемой ботом.
type Service interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*service.Receipt, error)
	Summary(ctx context.Context, day *time.Time) (model.OrdersSummary, error)
	Today() time.Time
}

// Sender отправляет сообщения в чат. Реализуется *bot.Bot из go-telegram/bot.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

// Bot обрабатывает команды /start, /summary и данные из Web App.
type Bot struct {
	service   Service
	logger    *zap.Logger
	webAppURL string
	username  string
	client    *tgbot.Bot
}

// New создаёт бота и регистрирует обработчики.
func New(ctx context.Context, token, webAppURL string, svc Service, logger *zap.Logger) (*Bot, error) {
	b := &Bot{
		service:   svc,
		logger:    logger,
		webAppURL: webAppURL,
	}

	client, err := tgbot.New(token,
		tgbot.WithDefaultHandler(b.dispatch),
		tgbot.WithErrorsHandler(func(err error) {
			logger.Error("telegram error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	me, err := client.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("get bot info: %w", err)
	}
	b.username = me.Username

	client.RegisterHandlerMatchFunc(b.matchCommand("start"),
		func(ctx context.Context, c *tgbot.Bot, u *models.Update) { b.HandleStart(ctx, c, u) })
	client.RegisterHandlerMatchFunc(b.matchCommand("summary"),
		func(ctx context.Context, c *tgbot.Bot, u *models.Update) { b.HandleSummary(ctx, c, u) })

	b.client = client
	return b, nil
}

// Run запускает long polling и блокируется до отмены контекста.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("starting telegram bot")
	b.client.Start(ctx)
	b.logger.Info("telegram bot stopped")
}

// matchCommand срабатывает на "/name" и "/name@username" в начале сообщения.
// Команды, адресованные другим ботам, и "/nameother" не совпадают.
func (b *Bot) matchCommand(name string) tgbot.MatchFunc {
	return func(u *models.Update) bool {
		if u.Message == nil {
			return false
		}
		fields := strings.Fields(u.Message.Text)
		if len(fields) == 0 {
			return false
		}

		cmd, target, addressed := strings.Cut(fields[0], "@")
		if cmd != "/"+name {
			return false
		}
		return !addressed || b.username == "" || strings.EqualFold(target, b.username)
	}
}

// dispatch получает все обновления без зарегистрированного обработчика.
func (b *Bot) dispatch(ctx context.Context, c *tgbot.Bot, u *models.Update) {
	if u.Message != nil && u.Message.WebAppData != nil {
		b.HandleWebAppData(ctx, c, u)
	}
}

// HandleStart отправляет кнопку, открывающую Web App.
func (b *Bot) HandleStart(ctx context.Context, s Sender, u *models.Update) {
	if u.Message == nil {
		return
	}

	b.reply(ctx, s, u.Message.Chat.ID, &tgbot.SendMessageParams{
		Text: greetingText,
		ReplyMarkup: &models.ReplyKeyboardMarkup{
			Keyboard: [][]models.KeyboardButton{{
				{Text: orderButtonText, WebApp: &models.WebAppInfo{URL: b.webAppURL}},
			}},
			ResizeKeyboard: true,
		},
	})
}

// HandleSummary отправляет сводку за текущий день.
func (b *Bot) HandleSummary(ctx context.Context, s Sender, u *models.Update) {
	if u.Message == nil {
		return
	}
	chatID := u.Message.Chat.ID

	today := b.service.Today()
	summary, err := b.service.Summary(ctx, &today)
	if err != nil {
		b.logger.Error("summary error", zap.Error(err), zap.Int64("chatID", chatID))
		b.reply(ctx, s, chatID, &tgbot.SendMessageParams{Text: receipt.SummaryFailureText})
		return
	}

	b.reply(ctx, s, chatID, &tgbot.SendMessageParams{
		Text:      receipt.Summary(summary),
		ParseMode: models.ParseModeHTML,
	})
}

// HandleWebAppData принимает заказ, отправленный через Telegram.WebApp.sendData.
func (b *Bot) HandleWebAppData(ctx context.Context, s Sender, u *models.Update) {
	msg := u.Message
	if msg == nil || msg.WebAppData == nil {
		return
	}
	chatID := msg.Chat.ID

	req, err := validation.ParseOrderPayload(msg.WebAppData.Data)
	if err != nil {
		b.logger.Warn("invalid payload received", zap.Error(err), zap.Int64("chatID", chatID))
		b.reply(ctx, s, chatID, &tgbot.SendMessageParams{Text: receipt.ErrorText(err)})
		return
	}

	in := service.PlaceOrderInput{ChatID: chatID, Request: req}
	if msg.From != nil {
		in.Username = msg.From.Username
	}

	res, err := b.service.PlaceOrder(ctx, in)
	if err != nil {
		b.logOrderError(err, chatID)
		b.reply(ctx, s, chatID, &tgbot.SendMessageParams{Text: receipt.ErrorText(err)})
		return
	}

	b.logger.Info("order recorded", zap.Int64("orderID", res.Order.ID), zap.Int64("chatID", chatID),
		zap.String("total", res.Order.Total.String()))

	b.reply(ctx, s, chatID, &tgbot.SendMessageParams{
		Text:      receipt.Order(res),
		ParseMode: models.ParseModeHTML,
	})
}

func (b *Bot) logOrderError(err error, chatID int64) {
	var (
		unknown    *service.UnknownMenuItemError
		storageErr *repository.StorageError
	)
	if errors.As(err, &unknown) {
		b.logger.Warn("invalid item", zap.Error(err), zap.Int64("chatID", chatID))
		return
	}
	retryable := errors.As(err, &storageErr) && storageErr.Retryable()
	b.logger.Error("record order error", zap.Error(err), zap.Int64("chatID", chatID), zap.Bool("retryable", retryable))
}

func (b *Bot) reply(ctx context.Context, s Sender, chatID int64, params *tgbot.SendMessageParams) {
	params.ChatID = chatID
	if _, err := s.SendMessage(ctx, params); err != nil {
		b.logger.Error("send message error", zap.Error(err), zap.Int64("chatID", chatID))
	}
}
