package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fbmirror/fbmirror/internal/fb"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func frame() *fb.Frame {
	return &fb.Frame{Width: 1, Height: 1, Pix: []byte{1, 2, 3}}
}

func TestFanOutSameFrameToAllSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	s1 := b.Subscribe()
	s2 := b.Subscribe()

	published := frame()

	var wg sync.WaitGroup
	results := make([]*fb.Frame, 2)
	for i, sub := range []*Subscription{s1, s2} {
		wg.Add(1)
		go func(i int, sub *Subscription) {
			defer wg.Done()
			f, err := sub.Next(context.Background())
			require.NoError(t, err)
			results[i] = f
		}(i, sub)
	}

	// Give both subscribers time to block before publishing.
	time.Sleep(20 * time.Millisecond)
	b.Publish(published)
	wg.Wait()

	assert.Same(t, published, results[0], "subscribers share the frame, no copy per client")
	assert.Same(t, published, results[1])
	assert.Equal(t, uint64(1), results[0].Seq)
}

func TestNextBlocksUntilNewerFrame(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	b.Publish(frame())

	f1, err := sub.Next(context.Background())
	require.NoError(t, err)

	// No new publish yet: Next must block, not hand out seq 1 again.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	b.Publish(frame())
	f2, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Greater(t, f2.Seq, f1.Seq, "the same sequence number is never delivered twice")
}

func TestSlowSubscriberSkipsToLatest(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	for i := 0; i < 5; i++ {
		b.Publish(frame())
	}

	f, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), f.Seq, "a slow subscriber resumes at the latest frame")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "intermediate frames are not queued")
}

func TestCancellationWakesBlockedSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Next(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled subscriber stayed blocked")
	}
}

func TestCloseWakesBlockedSubscribers(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("subscriber stayed blocked after close")
	}

	// Late subscribers observe the closed state too.
	_, err := b.Subscribe().Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublishAfterCloseIsNoOp(t *testing.T) {
	b := New()
	b.Publish(frame())
	b.Close()
	b.Publish(frame())

	assert.Equal(t, uint64(1), b.Latest().Seq)
}

func TestLatestBeforeFirstPublish(t *testing.T) {
	b := New()
	defer b.Close()
	assert.Nil(t, b.Latest())
}
