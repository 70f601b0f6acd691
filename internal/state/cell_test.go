package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status struct {
	ok   bool
	user string
}

func TestCell_Current(t *testing.T) {
	c := NewCell(status{})
	assert.Equal(t, status{}, c.Current())

	c.Publish(status{ok: true, user: "42"})
	assert.Equal(t, status{ok: true, user: "42"}, c.Current())
}

func TestCell_SubscribeReplaysLatestOnly(t *testing.T) {
	c := NewCell(status{})

	c.Publish(status{ok: true, user: "42"})
	c.Publish(status{})
	c.Publish(status{ok: true, user: "7"})
	c.Publish(status{})

	var got []status
	cancel := c.Subscribe(func(s status) { got = append(got, s) })
	defer cancel()

	require.Len(t, got, 1)
	assert.Equal(t, status{}, got[0])
}

func TestCell_DeliversInPublishOrder(t *testing.T) {
	c := NewCell(0)

	var first, second []int
	cancelFirst := c.Subscribe(func(v int) { first = append(first, v) })
	cancelSecond := c.Subscribe(func(v int) { second = append(second, v) })
	defer cancelFirst()
	defer cancelSecond()

	for i := 1; i <= 5; i++ {
		c.Publish(i)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, first)
	assert.Equal(t, first, second)
}

func TestCell_Cancel(t *testing.T) {
	c := NewCell(0)

	var got []int
	cancel := c.Subscribe(func(v int) { got = append(got, v) })
	assert.Equal(t, 1, c.Len())

	c.Publish(1)
	cancel()
	cancel()
	c.Publish(2)

	assert.Equal(t, []int{0, 1}, got)
	assert.Equal(t, 0, c.Len())
}

func TestCell_CancelFromObserver(t *testing.T) {
	c := NewCell(0)

	var got []int
	var cancel func()
	cancel = c.Subscribe(func(v int) {
		got = append(got, v)
		if v == 2 && cancel != nil {
			cancel()
		}
	})

	c.Publish(1)
	c.Publish(2)
	c.Publish(3)

	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestCell_ConcurrentPublishersKeepObserversInStep(t *testing.T) {
	c := NewCell(0)

	var mu sync.Mutex
	var first, second []int
	defer c.Subscribe(func(v int) {
		mu.Lock()
		first = append(first, v)
		mu.Unlock()
	})()
	defer c.Subscribe(func(v int) {
		mu.Lock()
		second = append(second, v)
		mu.Unlock()
	})()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			c.Publish(v)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, first, 51)
	assert.Equal(t, first, second)
	assert.Equal(t, first[len(first)-1], c.Current())
}

func TestCell_Wait(t *testing.T) {
	c := NewCell(status{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Publish(status{ok: true, user: "u1"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := c.Wait(ctx, func(s status) bool { return s.ok })
	require.NoError(t, err)
	assert.Equal(t, "u1", got.user)
	assert.Equal(t, 0, c.Len())
}

func TestCell_WaitContextDone(t *testing.T) {
	c := NewCell(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Wait(ctx, func(v int) bool { return v > 0 })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
