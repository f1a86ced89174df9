package navauth_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-navauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	loop := navauth.NewLoop(navauth.WithLoopLogger(nopLogger{}))

	var got []int
	for i := 0; i < 3; i++ {
		i := i
		require.NoError(t, loop.Post(func() { got = append(got, i) }))
	}
	assert.Equal(t, 3, loop.Len())

	assert.Equal(t, 3, loop.RunPending())
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, uint64(3), loop.Turns())
	assert.Equal(t, 0, loop.Len())
}

func TestLoopTaskPostedDuringTurnRunsAfter(t *testing.T) {
	loop := navauth.NewLoop(navauth.WithLoopLogger(nopLogger{}))

	var got []string
	require.NoError(t, loop.Post(func() {
		got = append(got, "outer:start")
		_ = loop.Post(func() { got = append(got, "inner") })
		got = append(got, "outer:end")
	}))
	require.NoError(t, loop.Post(func() { got = append(got, "second") }))

	loop.RunPending()
	assert.Equal(t, []string{"outer:start", "outer:end", "second", "inner"}, got)
}

func TestLoopDefer(t *testing.T) {
	loop := navauth.NewLoop(navauth.WithLoopLogger(nopLogger{}))

	ran := 0
	_, err := loop.Defer(func() { ran++ })
	require.NoError(t, err)

	cancel, err := loop.Defer(func() { ran += 10 })
	require.NoError(t, err)
	cancel()

	loop.RunPending()
	assert.Equal(t, 1, ran)
}

func TestLoopRecoversPanics(t *testing.T) {
	loop := navauth.NewLoop(navauth.WithLoopLogger(nopLogger{}))

	ran := false
	require.NoError(t, loop.Post(func() { panic("boom") }))
	require.NoError(t, loop.Post(func() { ran = true }))

	assert.NotPanics(t, func() { loop.RunPending() })
	assert.True(t, ran)
}

func TestLoopClosed(t *testing.T) {
	loop := navauth.NewLoop(navauth.WithLoopLogger(nopLogger{}))
	loop.Close()

	err := loop.Post(func() {})
	require.Error(t, err)
	assert.True(t, navauth.HasTextCode(err, navauth.ErrLoopClosed))

	_, err = loop.Defer(func() {})
	assert.Error(t, err)
}

func TestLoopRun(t *testing.T) {
	loop := navauth.NewLoop(navauth.WithLoopLogger(nopLogger{}))

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	executed := make(chan struct{})
	require.NoError(t, loop.Post(func() { close(executed) }))

	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}

	loop.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopRunContextCancel(t *testing.T) {
	loop := navauth.NewLoop(navauth.WithLoopLogger(nopLogger{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, loop.Run(ctx), context.Canceled)
}
