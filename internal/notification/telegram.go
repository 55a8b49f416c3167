package notification

import (
	"context"
	"net/http"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TelegramNotifier sends alerts as plain-text Telegram messages.
type TelegramNotifier struct {
	bot    *tgbot.BotAPI
	chatID int64
	log    *zap.Logger
}

// NewTelegramNotifier connects to the Bot API. endpoint may be empty for the
// public API; otherwise it is a format string like tgbot.APIEndpoint.
// Construction calls getMe, so an invalid token fails here.
func NewTelegramNotifier(token string, chatID int64, endpoint string, log *zap.Logger) (*TelegramNotifier, error) {
	if endpoint == "" {
		endpoint = tgbot.APIEndpoint
	}
	bot, err := tgbot.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "telegram: connect")
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, log: log.Named("telegram")}, nil
}

// Send posts the alert text, then the photo when one is attached. Plain text
// is used so indicator values never need escaping.
func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := alert.Message
	if alert.Signal == nil && alert.Title != "" {
		text = alert.Title + "\n\n" + alert.Message
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, text)); err != nil {
		return errors.Wrap(err, "telegram: send message")
	}

	if alert.PhotoPath != "" {
		photo := tgbot.NewPhoto(t.chatID, tgbot.FilePath(alert.PhotoPath))
		if _, err := t.bot.Send(photo); err != nil {
			return errors.Wrapf(err, "telegram: send photo %s", alert.PhotoPath)
		}
	}

	t.log.Debug("sent alert", zap.String("title", alert.Title), zap.Int64("chat_id", t.chatID))
	return nil
}
