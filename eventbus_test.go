package navauth_test

import (
	"errors"
	"testing"

	"github.com/goliatone/go-navauth"
	"github.com/stretchr/testify/assert"
)

func TestBusDeliversInRegistrationOrder(t *testing.T) {
	bus := navauth.NewBus[string](navauth.WithBusLogger(nopLogger{}))

	var got []string
	bus.On("topic", func(p string) error { got = append(got, "a:"+p); return nil })
	bus.On("topic", func(p string) error { got = append(got, "b:"+p); return nil })
	bus.On("other", func(p string) error { got = append(got, "other:"+p); return nil })

	delivered := bus.Emit("topic", "x")

	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{"a:x", "b:x"}, got)
}

func TestBusIsolatesFailingHandlers(t *testing.T) {
	bus := navauth.NewBus[int](navauth.WithBusLogger(nopLogger{}))

	var reached []string
	bus.On("t", func(int) error { reached = append(reached, "first"); return errors.New("boom") })
	bus.On("t", func(int) error { reached = append(reached, "second"); panic("kaboom") })
	bus.On("t", func(int) error { reached = append(reached, "third"); return nil })

	delivered := bus.Emit("t", 1)

	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"first", "second", "third"}, reached)
}

func TestBusDoesNotReplay(t *testing.T) {
	bus := navauth.NewBus[string](navauth.WithBusLogger(nopLogger{}))

	assert.Equal(t, 0, bus.Emit("t", "early"))

	var got []string
	bus.On("t", func(p string) error { got = append(got, p); return nil })
	bus.Emit("t", "late")

	assert.Equal(t, []string{"late"}, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := navauth.NewBus[string](navauth.WithBusLogger(nopLogger{}))

	calls := 0
	off := bus.On("t", func(string) error { calls++; return nil })
	bus.On("t", func(string) error { return nil })
	assert.Equal(t, 2, bus.Subscribers("t"))

	off()
	off()
	assert.Equal(t, 1, bus.Subscribers("t"))

	bus.Emit("t", "x")
	assert.Equal(t, 0, calls)

	bus.Clear()
	assert.Equal(t, 0, bus.Subscribers("t"))
}

func TestBusUnsubscribeDuringEmit(t *testing.T) {
	bus := navauth.NewBus[string](navauth.WithBusLogger(nopLogger{}))

	var got []string
	var offB func()
	bus.On("t", func(string) error { got = append(got, "a"); offB(); return nil })
	offB = bus.On("t", func(string) error { got = append(got, "b"); return nil })

	bus.Emit("t", "1")
	bus.Emit("t", "2")

	// the snapshot taken for the first emit still includes b
	assert.Equal(t, []string{"a", "b", "a"}, got)
}

func TestBusNilHandler(t *testing.T) {
	bus := navauth.NewAuthBus()
	off := bus.On(navauth.TopicAuth, nil)
	off()
	assert.Equal(t, 0, bus.Subscribers(navauth.TopicAuth))
}
