package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("OrderWithTxHash", func(t *testing.T) {
		ev, err := Decode(Change{Table: "orders", Op: "UPDATE", New: json.RawMessage(
			`{"id":"o-1","status":"paid","amount":"10.50","tx_hash":"abc","updated_at":"2026-10-17T15:04:05Z"}`)})
		require.NoError(t, err)
		ou := ev.(OrderUpdate)
		assert.Equal(t, "abc", ou.TxHash)
		assert.Equal(t, KindOrderUpdate, ou.Kind())
	})

	t.Run("DeleteUsesOldRow", func(t *testing.T) {
		ev, err := Decode(Change{Table: "products", Op: "DELETE", Old: json.RawMessage(
			`{"id":"p-1","name":"OG Kush","price":35.99,"stock":0}`), New: json.RawMessage(`null`)})
		require.NoError(t, err)
		iu := ev.(InventoryUpdate)
		assert.True(t, iu.Deleted)
		assert.Equal(t, "p-1", iu.ProductID)
	})

	t.Run("ChatMessage", func(t *testing.T) {
		ev, err := Decode(Change{Table: "chat_messages", Op: "INSERT", New: json.RawMessage(
			`{"id":7,"sender":"driver","body":"5 min away","created_at":"2026-10-17T15:04:05Z"}`)})
		require.NoError(t, err)
		assert.Equal(t, "5 min away", ev.(ChatMessage).Body)
	})

	t.Run("MissingRow", func(t *testing.T) {
		_, err := Decode(Change{Table: "orders", Op: "INSERT"})
		assert.ErrorIs(t, err, ErrEmptyChange)
	})

	t.Run("UnknownTable", func(t *testing.T) {
		_, err := Decode(Change{Table: "users", Op: "INSERT", New: json.RawMessage(`{}`)})
		assert.ErrorIs(t, err, ErrUnknownTable)
	})

	t.Run("MalformedRow", func(t *testing.T) {
		_, err := Decode(Change{Table: "delivery_status", Op: "UPDATE", New: json.RawMessage(`{"status":5}`)})
		assert.Error(t, err)
	})
}

func TestParseNotification(t *testing.T) {
	c, err := ParseNotification(`{"table":"orders","op":"INSERT","old":null,"new":{"id":"o-1"}}`)
	require.NoError(t, err)
	assert.Equal(t, "orders", c.Table)
	assert.Equal(t, "INSERT", c.Op)
	assert.JSONEq(t, `{"id":"o-1"}`, string(c.New))

	_, err = ParseNotification("not json")
	assert.Error(t, err)

	t.Run("OversizedRowAnnouncedWithoutImages", func(t *testing.T) {
		c, err := ParseNotification(`{"op": "UPDATE", "table": "chat_messages"}`)
		require.NoError(t, err)
		_, err = Decode(c)
		assert.ErrorIs(t, err, ErrEmptyChange)
	})
}
