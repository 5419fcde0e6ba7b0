package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransferRecorded(t *testing.T) {
	at := time.Date(2023, 11, 15, 6, 13, 20, 0, time.FixedZone("CST", 8*3600))
	e := NewTransferRecorded("0x02", "0x01", "0xalice", "0xbob", "1.5", "cat", "hi", 3, at)

	_, err := uuid.Parse(e.EventID)
	require.NoError(t, err)
	assert.Equal(t, "0xalice", e.Key())
	assert.Equal(t, time.UTC, e.ConfirmedAt.Location())

	other := NewTransferRecorded("0x02", "0x01", "0xalice", "0xbob", "1.5", "cat", "hi", 3, at)
	assert.NotEqual(t, e.EventID, other.EventID)

	raw, err := e.Marshal()
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "0x01", wire["native_tx_hash"])
	assert.Equal(t, "2023-11-14T22:13:20Z", wire["confirmed_at"])
}
