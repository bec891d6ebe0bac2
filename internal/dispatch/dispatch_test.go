package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMainThread_RunsActionsInOrderOnOneGoroutine(t *testing.T) {
	d := NewMainThread(8)
	d.Start()
	defer d.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(20)
	for i := 0; i < 20; i++ {
		i := i
		d.Submit(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	require.Len(t, order, 20)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestMainThread_StopDrainsQueue(t *testing.T) {
	d := NewMainThread(4)

	ran := 0
	for i := 0; i < 3; i++ {
		require.NoError(t, d.TrySubmit(func() { ran++ }))
	}

	d.Start()
	d.Stop()

	assert.Equal(t, 3, ran)
}

func TestMainThread_SubmitAfterStop(t *testing.T) {
	d := NewMainThread(1)
	d.Start()
	d.Stop()

	err := d.TrySubmit(func() {})
	assert.ErrorIs(t, err, ErrDispatcherStopped)

	// Submit swallows the error
	d.Submit(func() { t.Error("action must not run after stop") })
}

func TestMainThread_RecoversFromPanics(t *testing.T) {
	d := NewMainThread(2)
	d.Start()
	defer d.Stop()

	done := make(chan struct{})
	d.Submit(func() { panic("boom") })
	d.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher stopped running after a panicking action")
	}
}

func TestMainThread_StopIsIdempotent(t *testing.T) {
	d := NewMainThread(1)
	d.Stop()
	d.Stop()
	d.Start()
}

func TestInline_RunsImmediately(t *testing.T) {
	ran := false
	Inline{}.Submit(func() { ran = true })
	assert.True(t, ran)
}
