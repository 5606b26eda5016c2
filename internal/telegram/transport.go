// Package telegram реализует транспорт сообщений через Telegram Bot API.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// MessageHandler обрабатывает одно сообщение исходного канала
type MessageHandler func(ctx context.Context, text string, isReply bool)

// Transport доставляет посты исходного канала и отправляет
// ретрансляцию в целевой канал
//
// Входящие сообщения обрабатываются последовательно в порядке прихода:
// вход обязан обработаться раньше профит-обновления по нему.
type Transport struct {
	api *tgbotapi.BotAPI
	log *zap.Logger

	sourceChannelID int64
	targetChannelID int64

	handler MessageHandler
}

// NewTransport подключается к Telegram Bot API
func NewTransport(token string, sourceChannelID, targetChannelID int64, log *zap.Logger) (*Transport, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	api.Debug = false

	log.Info("Telegram connected", zap.String("bot", api.Self.UserName))

	return &Transport{
		api:             api,
		log:             log,
		sourceChannelID: sourceChannelID,
		targetChannelID: targetChannelID,
	}, nil
}

// SetHandler устанавливает обработчик входящих сообщений
func (t *Transport) SetHandler(h MessageHandler) {
	t.handler = h
}

// Run получает обновления до отмены контекста
func (t *Transport) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "channel_post"}

	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}

			// Посты канала приходят как ChannelPost, сообщения
			// группы-источника как Message
			msg := update.ChannelPost
			if msg == nil {
				msg = update.Message
			}
			if msg == nil || msg.Text == "" {
				continue
			}
			if msg.Chat == nil || msg.Chat.ID != t.sourceChannelID {
				continue
			}
			if t.handler == nil {
				continue
			}

			isReply := msg.ReplyToMessage != nil
			t.log.Debug("message received",
				zap.Bool("is_reply", isReply),
				zap.Int("length", len(msg.Text)))

			t.handler(ctx, msg.Text, isReply)
		}
	}
}

// Send отправляет текст в целевой канал
func (t *Transport) Send(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	msg := tgbotapi.NewMessage(t.targetChannelID, text)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to target channel: %w", err)
	}
	return nil
}
