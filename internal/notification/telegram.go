package notification

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ChatSender is the part of the Telegram bot API the notifier needs.
type ChatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends operator alerts to an admin chat.
type TelegramNotifier struct {
	bot      ChatSender
	chatID   int64
	observer Observer
}

// NewTelegramNotifier authorizes the bot token. It returns nil when the token or chat is
// not configured.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("Telegram alerts authorized on account %s", bot.Self.UserName)
	return NewTelegramNotifierWithSender(bot, chatID), nil
}

// NewTelegramNotifierWithSender builds a notifier around an existing bot.
func NewTelegramNotifierWithSender(bot ChatSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

// SetObserver registers o for delivery reports.
func (n *TelegramNotifier) SetObserver(o Observer) {
	n.observer = o
}

// Alert sends message to the admin chat. Failures are logged. A nil notifier is a no-op.
func (n *TelegramNotifier) Alert(message string) {
	if n == nil || n.bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, message)
	_, err := n.bot.Send(msg)
	if n.observer != nil {
		n.observer.ObserveNotification("telegram", err)
	}
	if err != nil {
		log.Printf("Failed to send Telegram alert: %v", err)
	}
}
