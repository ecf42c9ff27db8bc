package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"zazoom-be/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockRoundTripper func(req *http.Request) (*http.Response, error)

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func TestTwilioClient_SendSMS(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		c := NewTwilioClient("AC123", "secret", "+15550001111")
		c.policy = fastPolicy
		c.httpClient.Transport = MockRoundTripper(func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "https://api.twilio.com/2010-04-01/Accounts/AC123/Messages.json", req.URL.String())

			user, pass, ok := req.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "AC123", user)
			assert.Equal(t, "secret", pass)

			require.NoError(t, req.ParseForm())
			assert.Equal(t, "+15551234567", req.PostForm.Get("To"))
			assert.Equal(t, "+15550001111", req.PostForm.Get("From"))
			assert.Equal(t, "on its way", req.PostForm.Get("Body"))

			return jsonResponse(http.StatusCreated, `{"sid":"SM1"}`), nil
		})

		assert.NoError(t, c.SendSMS(ctx, "555-123-4567", "on its way"))
	})

	t.Run("ProviderError", func(t *testing.T) {
		c := NewTwilioClient("AC123", "secret", "+15550001111")
		c.policy = fastPolicy
		c.httpClient.Transport = MockRoundTripper(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadRequest, `{"code":21211,"message":"The 'To' number is not valid."}`), nil
		})

		err := c.SendSMS(ctx, "+15551234567", "hi")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "The 'To' number is not valid.", apiErr.Description)
		assert.False(t, apiErr.Temporary())
	})

	t.Run("NetworkErrorRetried", func(t *testing.T) {
		calls := 0
		c := NewTwilioClient("AC123", "secret", "+15550001111")
		c.policy = fastPolicy
		c.httpClient.Transport = MockRoundTripper(func(req *http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("connection reset")
		})

		assert.Error(t, c.SendSMS(ctx, "+15551234567", "hi"))
		assert.Equal(t, fastPolicy.Attempts, calls)
	})

	t.Run("InvalidPhone", func(t *testing.T) {
		c := NewTwilioClient("AC123", "secret", "+15550001111")
		assert.ErrorIs(t, c.SendSMS(ctx, "12", "hi"), utils.ErrInvalidPhone)
	})

	t.Run("NotConfigured", func(t *testing.T) {
		c := NewTwilioClient("", "", "")
		assert.ErrorIs(t, c.SendSMS(ctx, "+15551234567", "hi"), ErrNotConfigured)
	})
}

func TestInstagramBot(t *testing.T) {
	bot := NewInstagramBot()
	assert.NoError(t, bot.SendDirectMessage(context.Background(), "zazoom_fan", "hi"))
	assert.ErrorIs(t, bot.SendDirectMessage(context.Background(), "", "hi"), ErrNoRecipient)
}
