package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"zazoom-be/internal/logger"

	"go.uber.org/zap"
)

const DefaultTelegramURL = "https://api.telegram.org"

// TelegramClient talks to the Bot API on behalf of the dispatch bot.
type TelegramClient struct {
	sender
	baseURL      string
	token        string
	driverChatID string
}

func NewTelegramClient(token, driverChatID string) *TelegramClient {
	if token == "" {
		logger.L().Warn("Telegram bot token is empty")
	}
	return &TelegramClient{
		sender:       newSender("telegram"),
		baseURL:      DefaultTelegramURL,
		token:        token,
		driverChatID: driverChatID,
	}
}

// Configured reports whether driver messages can be delivered at all.
func (c *TelegramClient) Configured() bool {
	return c.token != "" && c.driverChatID != ""
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *TelegramClient) call(ctx context.Context, method string, payload interface{}) error {
	if c.token == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(c.baseURL, "/"), c.token, method)
	respBody, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, telegramError)
	if err != nil {
		return err
	}

	var parsed telegramResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("failed to decode telegram response: %w", err)
	}
	if !parsed.OK {
		return &APIError{Provider: "telegram", StatusCode: http.StatusOK, Description: parsed.Description}
	}
	return nil
}

func telegramError(_ int, body []byte) string {
	var parsed telegramResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Description != "" {
		return parsed.Description
	}
	return string(body)
}

// SendMessage posts HTML-formatted text to a chat.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	err := c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		logger.FromCtx(ctx).Error("failed to send telegram message",
			zap.String("layer", "notify"),
			zap.String("chat_id", chatID),
			zap.Error(err),
		)
	}
	return err
}

// SendDriverMessage posts to the shared driver dispatch chat.
func (c *TelegramClient) SendDriverMessage(ctx context.Context, text string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	return c.SendMessage(ctx, c.driverChatID, text)
}

// SetWebhook points the bot at url for message and callback updates.
// Telegram echoes secret back in every webhook request.
func (c *TelegramClient) SetWebhook(ctx context.Context, url, secret string) error {
	payload := map[string]interface{}{
		"url":             url,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if secret != "" {
		payload["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", payload)
}
