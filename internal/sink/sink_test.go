package sink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/value"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelSinkDeliversEventsThenNotification(t *testing.T) {
	s := NewChannel(4)
	require.NoError(t, s.Create())

	e := event.Event{ID: 1, Name: "flow", Timestamp: time.Now(), Data: value.RecordValue(value.CountValue(80))}
	require.NoError(t, s.Push(e))

	id := uuid.New()
	require.NoError(t, s.Done(id, true, 5*time.Second))

	got, ok := <-s.Events()
	require.True(t, ok)
	assert.Equal(t, e.ID, got.ID)

	_, ok = <-s.Events()
	assert.False(t, ok, "channel should close after Done")

	note := <-s.Notify()
	assert.Equal(t, id, note.ID)
	assert.True(t, note.Done)
	assert.Equal(t, 5*time.Second, note.Runtime)
}

func TestFileSinkWritesLineDelimitedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	s, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Create())

	e := event.Event{
		ID:        7,
		Name:      "dns_query",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Data:      value.RecordValue(value.StringValue("example.com"), value.CountValue(53)),
		Attributes: map[string]value.Value{"sensitive": value.BoolValue(true)},
	}
	require.NoError(t, s.Push(e))
	require.NoError(t, s.Done(uuid.New(), true, time.Second))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var rec eventJSON
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
	assert.Equal(t, uint64(7), rec.ID)
	assert.Equal(t, "dns_query", rec.Name)
	assert.Equal(t, "example.com", rec.Data[0])
	assert.Equal(t, true, rec.Attributes["sensitive"])

	require.True(t, scanner.Scan())
	var summary summaryJSON
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &summary))
	assert.True(t, summary.Done)

	assert.False(t, scanner.Scan())
}
