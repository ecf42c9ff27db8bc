package notify

import (
	"context"

	"zazoom-be/internal/logger"

	"go.uber.org/zap"
)

// InstagramBot only logs direct messages until account credentials exist.
type InstagramBot struct{}

func NewInstagramBot() *InstagramBot {
	logger.Component("instagram").Info("Instagram bot initialized in mock mode")
	return &InstagramBot{}
}

func (b *InstagramBot) SendDirectMessage(ctx context.Context, userID, text string) error {
	if userID == "" {
		return ErrNoRecipient
	}
	logger.FromCtx(ctx).Info("[mock] instagram direct message",
		zap.String("layer", "notify"),
		zap.String("instagram_id", userID),
		zap.String("text", text),
	)
	return nil
}
