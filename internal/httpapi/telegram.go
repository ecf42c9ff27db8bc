package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"zazoom-be/internal/logger"
	"zazoom-be/internal/utils"

	"go.uber.org/zap"
)

// SecretTokenHeader carries the secret registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

type telegramChat struct {
	ID int64 `json:"id"`
}

type telegramUser struct {
	ID int64 `json:"id"`
}

type telegramMessage struct {
	Chat telegramChat `json:"chat"`
	From telegramUser `json:"from"`
	Text string       `json:"text"`
}

type telegramCallback struct {
	From    telegramUser     `json:"from"`
	Data    string           `json:"data"`
	Message *telegramMessage `json:"message"`
}

type telegramUpdate struct {
	UpdateID      int64             `json:"update_id"`
	Message       *telegramMessage  `json:"message"`
	CallbackQuery *telegramCallback `json:"callback_query"`
}

// command pulls the chat, sender and text out of either update kind.
func (u telegramUpdate) command() (chatID, driverID, text string, ok bool) {
	switch {
	case u.Message != nil && u.Message.Text != "":
		m := u.Message
		return strconv.FormatInt(m.Chat.ID, 10), strconv.FormatInt(m.From.ID, 10), m.Text, true
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		q := u.CallbackQuery
		return strconv.FormatInt(q.Message.Chat.ID, 10), strconv.FormatInt(q.From.ID, 10), q.Data, true
	}
	return "", "", "", false
}

// telegramWebhook runs driver commands. Telegram retries anything but a
// 200, so failures are answered in the chat instead.
func (s *Server) telegramWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "handler"),
		zap.String("method", "telegramWebhook"),
	)

	if s.TelegramSecret != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.TelegramSecret)) != 1 {
			log.Warn("rejected webhook with bad secret")
			utils.WriteJSONError(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	var update telegramUpdate
	if err := utils.DecodeJSONLenient(r, &update); err != nil {
		log.Warn("unreadable telegram update", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	chatID, driverID, text, ok := update.command()
	if !ok || s.Delivery == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	log = log.With(zap.Int64("update_id", update.UpdateID), zap.String("driver_id", driverID))

	reply, err := s.Delivery.HandleCommand(ctx, driverID, text)
	if err != nil {
		log.Info("driver command failed", zap.String("text", text), zap.Error(err))
		reply = "Could not run that command: " + err.Error()
	}

	if s.Chat != nil {
		if err := s.Chat.SendMessage(ctx, chatID, reply); err != nil {
			log.Error("failed to reply to driver", zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusOK)
}
