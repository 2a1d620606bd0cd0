package services

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"backend_cmms/logger"
)

// MessageSender отправляет текстовое сообщение в чат и возвращает ID сообщения
type MessageSender interface {
	SendMessage(chatID string, message string) (string, error)
}

// TelegramClient представляет клиент для работы с Telegram Bot API
type TelegramClient struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramClient создает новый экземпляр Telegram клиента
func NewTelegramClient(token string) (*TelegramClient, error) {
	if token == "" {
		return nil, fmt.Errorf("не задан токен Telegram бота")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram бота: %w", err)
	}

	// В продакшене отключаем debug
	bot.Debug = false

	logger.Log.WithField("bot", bot.Self.UserName).Info("Telegram бот авторизован")

	return &TelegramClient{bot: bot}, nil
}

// SendMessage отправляет сообщение в чат
func (tc *TelegramClient) SendMessage(chatID string, message string) (string, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("неверный chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(chatIDInt, message)
	msg.ParseMode = tgbotapi.ModeHTML

	sentMsg, err := tc.bot.Send(msg)
	if err != nil {
		return "", fmt.Errorf("ошибка отправки сообщения: %w", err)
	}

	return strconv.Itoa(sentMsg.MessageID), nil
}
