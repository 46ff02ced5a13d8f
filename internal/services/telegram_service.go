package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/devstudio/internal/models"
)

// TelegramService pushes operator notifications to a Telegram admin chat.
// When the bot token or chat ID is missing, sends become no-ops.
type TelegramService struct {
	botToken    string
	adminChatID string
	client      *http.Client
	logger      zerolog.Logger
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string, logger zerolog.Logger) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger.With().Str("service", "telegram").Logger(),
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		s.logger.Warn().Msg("bot token not configured, skipping message")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to send message")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Error().Int("status", resp.StatusCode).Msg("unexpected telegram status")
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		s.logger.Warn().Msg("admin chat ID not configured, skipping message")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// NotifyOrderPaid posts a paid-order summary to the admin chat.
func (s *TelegramService) NotifyOrderPaid(order *models.Order) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>PAYMENT RECEIVED</b>
<b>Order:</b> #%s
<b>Customer:</b> %s
<b>Email:</b> %s
<b>Project:</b> %s (%s)
<b>Pages:</b> %d
<b>Total:</b> %.0f
<b>Payment ID:</b> %s`,
		shortID(order.ID.String()),
		order.Name,
		order.Email,
		order.ProjectType,
		order.TechStack,
		order.NumberOfPages,
		order.TotalPrice,
		order.PaymentID,
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}
