package stimulus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual(t *testing.T) {
	t.Run("fire delivers a tick", func(t *testing.T) {
		src := NewManual()
		defer src.Stop()

		src.Fire()
		select {
		case <-src.C():
		case <-time.After(time.Second):
			t.Fatal("tick was not delivered")
		}
	})

	t.Run("fire never blocks", func(t *testing.T) {
		src := NewManual()
		defer src.Stop()

		// Nobody is draining; a pending tick is enough
		src.Fire()
		src.Fire()
		src.Fire()
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		src := NewManual()
		src.Stop()
		src.Stop()
	})
}

func TestDrive(t *testing.T) {
	t.Run("invokes fn once per tick", func(t *testing.T) {
		src := NewManual()
		var count atomic.Int64
		done := make(chan struct{})

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			defer close(done)
			Drive(ctx, src, func(ctx context.Context) error {
				count.Add(1)
				return nil
			})
		}()

		for i := 0; i < 3; i++ {
			src.Fire()
			require.Eventually(t, func() bool {
				return count.Load() == int64(i+1)
			}, time.Second, 5*time.Millisecond)
		}

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Drive did not stop on context cancellation")
		}
	})

	t.Run("keeps running through failures", func(t *testing.T) {
		src := NewManual()
		var count atomic.Int64
		done := make(chan struct{})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			defer close(done)
			Drive(ctx, src, func(ctx context.Context) error {
				count.Add(1)
				return errors.New("transient")
			})
		}()

		src.Fire()
		require.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)
		src.Fire()
		require.Eventually(t, func() bool { return count.Load() == 2 }, time.Second, 5*time.Millisecond)
	})

	t.Run("stops when the source stops", func(t *testing.T) {
		src := NewManual()
		done := make(chan struct{})

		go func() {
			defer close(done)
			Drive(context.Background(), src, func(ctx context.Context) error { return nil })
		}()

		src.Stop()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Drive did not stop when the source stopped")
		}
	})
}

func TestTicker(t *testing.T) {
	src := NewTicker(10 * time.Millisecond)
	defer src.Stop()

	select {
	case tick := <-src.C():
		assert.False(t, tick.IsZero())
	case <-time.After(time.Second):
		t.Fatal("ticker never fired")
	}
}
