package event

import (
	"testing"
	"time"

	"github.com/evidex/evidex/internal/value"
	"github.com/stretchr/testify/require"
)

func TestEmptyReportsNonRecordData(t *testing.T) {
	e := Event{ID: 1, Name: "x", Data: value.Value{}}
	require.True(t, e.Empty())
}

func TestEmptyReportsZeroFieldRecord(t *testing.T) {
	e := Event{ID: 1, Name: "x", Data: value.RecordValue()}
	require.True(t, e.Empty())
}

func TestEmptyFalseForPopulatedRecord(t *testing.T) {
	e := Event{
		ID:        1,
		Name:      "dns_query",
		Timestamp: time.Now(),
		Data:      value.RecordValue(value.StringValue("a.com"), value.CountValue(1)),
	}
	require.False(t, e.Empty())
}
