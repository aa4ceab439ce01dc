package audit

import (
	"context"
	"errors"
)

// ErrBufferFull reports a dropped audit event.
var ErrBufferFull = errors.New("audit buffer full")

// Buffer is a Store that hands events to a background worker over a channel.
// Append never blocks the caller: when the inbox is full the event is dropped
// and reported, since audit sinks must not stall calculations.
type Buffer struct {
	inbox chan Event
}

func NewBuffer(size int) *Buffer {
	return &Buffer{inbox: make(chan Event, size)}
}

func (b *Buffer) Append(_ context.Context, event Event) error {
	select {
	case b.inbox <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// Inbox is the worker's consumption side.
func (b *Buffer) Inbox() <-chan Event {
	return b.inbox
}
