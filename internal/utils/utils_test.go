package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminContext(t *testing.T) {
	t.Run("SetAdminContext and GetAdminFromContext", func(t *testing.T) {
		ctx := SetAdminContext(context.Background(), "root", RoleAdmin)

		name, ok := GetAdminFromContext(ctx)
		assert.True(t, ok)
		assert.Equal(t, "root", name)
		assert.Equal(t, RoleAdmin, ctx.Value(RoleKey))
	})

	t.Run("Empty context", func(t *testing.T) {
		_, ok := GetAdminFromContext(context.Background())
		assert.False(t, ok)
	})
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"US ten digits", "(555) 123-4567", "+15551234567", false},
		{"US with country code", "1-555-123-4567", "+15551234567", false},
		{"Already E.164", "+44 20 7946 0958", "+442079460958", false},
		{"Empty", "  ", "", true},
		{"Too short", "12345", "", true},
		{"Too long with plus", "+1234567890123456", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSONError(w, "bad things", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "bad things", body["error"])
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		OrderID string `json:"orderId"`
	}

	t.Run("Valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"orderId":"abc"}`))
		var p payload
		require.NoError(t, DecodeJSON(r, &p))
		assert.Equal(t, "abc", p.OrderID)
	})

	t.Run("Empty", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var p payload
		assert.ErrorIs(t, DecodeJSON(r, &p), ErrEmptyBody)
	})

	t.Run("Unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
		var p payload
		assert.Error(t, DecodeJSON(r, &p))
	})

	t.Run("Lenient accepts unknown fields", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"orderId":"x","nope":1}`))
		var p payload
		require.NoError(t, DecodeJSONLenient(r, &p))
		assert.Equal(t, "x", p.OrderID)
	})
}
