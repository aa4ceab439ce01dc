package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferAppendAndConsume(t *testing.T) {
	buf := NewBuffer(2)

	require.NoError(t, buf.Append(context.Background(), Event{Action: "a"}))
	require.NoError(t, buf.Append(context.Background(), Event{Action: "b"}))

	got := <-buf.Inbox()
	require.Equal(t, "a", got.Action)
}

func TestBufferDropsWhenFull(t *testing.T) {
	buf := NewBuffer(1)

	require.NoError(t, buf.Append(context.Background(), Event{Action: "a"}))
	err := buf.Append(context.Background(), Event{Action: "b"})
	require.ErrorIs(t, err, ErrBufferFull)
}
