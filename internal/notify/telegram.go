package notify

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jardins/ghlsync/internal/config"
	"github.com/jardins/ghlsync/internal/logging"
	"github.com/jardins/ghlsync/internal/pipeline"
)

// Notify sends a one-off Telegram message. Delivery is best effort: a
// pipeline run never fails because the notification did.
func Notify(token string, chatID int64, text string) {
	token = strings.TrimSpace(token)
	if token == "" || chatID == 0 || strings.TrimSpace(text) == "" {
		return
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	_, _ = bot.Send(msg)
}

// Notifier builds a run-summary callback from the Telegram config section,
// or nil when notifications are disabled.
func Notifier(cfg config.TelegramConfig, logger *logging.Logger) pipeline.Notifier {
	if !cfg.Enabled || cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil
	}
	return func(text string) {
		Notify(cfg.BotToken, cfg.ChatID, text)
		if logger != nil {
			logger.Debug("run notification sent", "chat_id", cfg.ChatID)
		}
	}
}
