package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"zazoom-be/internal/logger"
	"zazoom-be/internal/utils"

	"go.uber.org/zap"
)

const DefaultTwilioURL = "https://api.twilio.com"

// TwilioClient sends SMS through the Messages resource.
type TwilioClient struct {
	sender
	baseURL    string
	accountSID string
	authToken  string
	from       string
}

func NewTwilioClient(accountSID, authToken, from string) *TwilioClient {
	if accountSID == "" || authToken == "" {
		logger.L().Warn("Twilio credentials are empty")
	}
	return &TwilioClient{
		sender:     newSender("twilio"),
		baseURL:    DefaultTwilioURL,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
	}
}

func (c *TwilioClient) Configured() bool {
	return c.accountSID != "" && c.authToken != "" && c.from != ""
}

type twilioMessage struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
}

func (c *TwilioClient) SendSMS(ctx context.Context, to, body string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "notify"),
		zap.String("method", "SendSMS"),
	)

	if !c.Configured() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(body) == "" {
		return ErrEmptyMessage
	}
	phone, err := utils.NormalizePhone(to)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", c.from)
	form.Set("Body", body)
	encoded := form.Encode()

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(c.baseURL, "/"), c.accountSID)
	respBody, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.accountSID, c.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, twilioError)
	if err != nil {
		log.Error("failed to send SMS", zap.Error(err))
		return err
	}

	var msg twilioMessage
	_ = json.Unmarshal(respBody, &msg)
	log.Info("SMS sent", zap.String("sid", msg.SID))
	return nil
}

func twilioError(_ int, body []byte) string {
	var msg twilioMessage
	if err := json.Unmarshal(body, &msg); err == nil && msg.Message != "" {
		return msg.Message
	}
	return string(body)
}
