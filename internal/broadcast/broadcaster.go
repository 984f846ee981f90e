// SPDX-License-Identifier: MIT

// Package broadcast fans the latest decoded frame out to any number of
// stream subscribers. Delivery is lossy-live: a subscriber slower than the
// publish cadence skips intermediate frames and always resumes at the
// latest one. There is no queue and no backpressure onto the capture loop.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fbmirror/fbmirror/internal/fb"
)

// ErrClosed is returned from Next once the broadcaster has shut down.
var ErrClosed = errors.New("broadcaster closed")

// Broadcaster holds the single most recent frame. Publish is called only by
// the capture loop and never blocks on subscriber state; subscribers read
// the frame through an atomic pointer and therefore never observe a torn
// frame.
type Broadcaster struct {
	current atomic.Pointer[fb.Frame]

	mu     sync.Mutex
	notify chan struct{} // closed and replaced on every publish
	seq    uint64
	closed bool
}

// New creates an empty broadcaster.
func New() *Broadcaster {
	return &Broadcaster{notify: make(chan struct{})}
}

// Publish stamps the frame with the next sequence number, swaps it in as
// the current frame and wakes every subscriber blocked in Next. Publishing
// after Close is a no-op.
func (b *Broadcaster) Publish(f *fb.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.seq++
	f.Seq = b.seq
	b.current.Store(f)
	close(b.notify)
	b.notify = make(chan struct{})
}

// Latest returns the current frame, or nil before the first publish.
func (b *Broadcaster) Latest() *fb.Frame {
	return b.current.Load()
}

// Close wakes all blocked subscribers; their next call to Next returns
// ErrClosed once they have drained the final frame.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

// Subscription tracks one client's progress through the frame sequence.
type Subscription struct {
	ID       string
	b        *Broadcaster
	lastSeen uint64
}

// Subscribe registers interest in future frames. Subscriptions carry no
// server-side resources beyond the sequence cursor, so there is nothing to
// unsubscribe; dropping the value is enough.
func (b *Broadcaster) Subscribe() *Subscription {
	return &Subscription{ID: uuid.NewString(), b: b}
}

// Next blocks until a frame newer than the last one seen by this
// subscription is available, then returns it and advances the cursor. It
// returns ctx.Err() when the caller's context is cancelled and ErrClosed
// when the broadcaster shuts down.
func (s *Subscription) Next(ctx context.Context) (*fb.Frame, error) {
	for {
		s.b.mu.Lock()
		if f := s.b.current.Load(); f != nil && f.Seq > s.lastSeen {
			s.lastSeen = f.Seq
			s.b.mu.Unlock()
			return f, nil
		}
		if s.b.closed {
			s.b.mu.Unlock()
			return nil, ErrClosed
		}
		wake := s.b.notify
		s.b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}
