package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, g Group) <-chan []byte {
	t.Helper()
	ch := make(chan []byte, 16)
	g.SetReceiver(func(ctx context.Context, data []byte) {
		ch <- data
	})
	return ch
}

func expectMessage(t *testing.T, ch <-chan []byte, want string) {
	t.Helper()
	select {
	case got := <-ch:
		assert.Equal(t, want, string(got))
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func expectSilence(t *testing.T, ch <-chan []byte) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected message %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_Multicast(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	a, b, c := hub.Join("a"), hub.Join("b"), hub.Join("c")
	defer a.Close()
	defer b.Close()
	defer c.Close()

	inA, inB, inC := collect(t, a), collect(t, b), collect(t, c)

	require.NoError(t, a.Connect(ctx, "g"))
	require.NoError(t, b.Connect(ctx, "g"))
	require.NoError(t, c.Connect(ctx, "g"))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, hub.Members("g"))

	require.NoError(t, a.Send(ctx, []byte("hello")))

	expectMessage(t, inB, "hello")
	expectMessage(t, inC, "hello")
	expectSilence(t, inA)
}

func TestHub_GroupsAreIsolated(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	a, b := hub.Join("a"), hub.Join("b")
	defer a.Close()
	defer b.Close()
	inB := collect(t, b)

	require.NoError(t, a.Connect(ctx, "g1"))
	require.NoError(t, b.Connect(ctx, "g2"))

	require.NoError(t, a.Send(ctx, []byte("x")))
	expectSilence(t, inB)
}

func TestHub_ConnectErrors(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	a := hub.Join("a")
	defer a.Close()

	var ce *ConnectError
	err := a.Connect(ctx, "")
	require.True(t, errors.As(err, &ce))

	require.NoError(t, a.Connect(ctx, "g"))
	err = a.Connect(ctx, "g")
	require.True(t, errors.As(err, &ce))

	dup := hub.Join("a")
	err = dup.Connect(ctx, "g")
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "g", ce.Group)

	closed := hub.Join("z")
	require.NoError(t, closed.Close())
	err = closed.Connect(ctx, "g")
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHub_SendBeforeConnect(t *testing.T) {
	a := NewHub().Join("a")
	err := a.Send(context.Background(), []byte("x"))

	var se *SendError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestHub_SendFailsWhenNoMemberAccepts(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	a, b := hub.Join("a"), hub.Join("b")
	defer a.Close()
	defer b.Close()

	// b never drains: its receiver blocks until the transport closes.
	b.SetReceiver(func(ctx context.Context, data []byte) {
		<-ctx.Done()
	})
	require.NoError(t, a.Connect(ctx, "g"))
	require.NoError(t, b.Connect(ctx, "g"))

	// One message is held by the receiver, the rest fill the inbox.
	for i := 0; i < defaultInboxSize+1; i++ {
		require.NoError(t, a.Send(ctx, []byte("fill")))
	}

	sendCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	err := a.Send(sendCtx, []byte("overflow"))
	var se *SendError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHub_CloseLeavesGroup(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	a := hub.Join("a")
	require.NoError(t, a.Connect(ctx, "g"))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	assert.Empty(t, hub.Members("g"))
}
