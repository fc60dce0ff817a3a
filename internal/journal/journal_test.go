package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_RecordAndEvents(t *testing.T) {
	ctx := context.Background()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	at := time.Unix(1700000000, 123)
	require.NoError(t, j.Record(ctx, Event{NodeID: "a", Kind: Sent, Timestamp: 1, Clock: 1, Payload: "ff", At: at}))
	require.NoError(t, j.Record(ctx, Event{NodeID: "b", Kind: Received, Timestamp: 1, Clock: 1, Payload: "ff"}))
	require.NoError(t, j.Record(ctx, Event{NodeID: "a", Kind: Received, Timestamp: 2, Clock: 2, Payload: "ee"}))
	require.NoError(t, j.Record(ctx, Event{NodeID: "a", Kind: Dropped, Detail: "malformed packet"}))

	events, err := j.Events(ctx, "a")
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, Sent, events[0].Kind)
	assert.EqualValues(t, 1, events[0].Clock)
	assert.Equal(t, "ff", events[0].Payload)
	assert.True(t, at.Equal(events[0].At))

	assert.Equal(t, Received, events[1].Kind)
	assert.EqualValues(t, 2, events[1].Timestamp)

	assert.Equal(t, Dropped, events[2].Kind)
	assert.Equal(t, "malformed packet", events[2].Detail)
	assert.False(t, events[2].At.IsZero())
}

func TestSQLite_ReopenKeepsEvents(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, Event{NodeID: "a", Kind: Sent, Timestamp: 1, Clock: 1}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	events, err := j.Events(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	assert.NoError(t, s.Record(context.Background(), Event{Kind: Sent}))
}
