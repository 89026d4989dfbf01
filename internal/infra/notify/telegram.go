// Package notify delivers operational alerts to the people running the
// authority. Alerts are best-effort; losing one never affects a request.
package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier sends alerts to a fixed operator chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramNotifier(botToken string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "TelegramNotifier").Logger()
	return &TelegramNotifier{bot: bot, chatID: chatID, log: &l}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, message string) error {
	msg := tgbotapi.NewMessage(n.chatID, message)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Msg("alert delivery failed")
		return err
	}
	return nil
}
