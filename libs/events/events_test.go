package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAddListenerForEventFireOnce sets up an EventSwitch, subscribes a single
// listener to an event, and sends a string "data".
func TestAddListenerForEventFireOnce(t *testing.T) {
	evsw := NewEventSwitch()

	messages := make(chan EventData)
	require.NoError(t, evsw.AddListenerForEvent("listener", "event",
		func(data EventData) error {
			messages <- data
			return nil
		}))
	go evsw.FireEvent("event", "data")
	received := <-messages
	assert.Equal(t, "data", received)
}

func TestAddListenerNilCallback(t *testing.T) {
	evsw := NewEventSwitch()
	require.Error(t, evsw.AddListenerForEvent("listener", "event", nil))
}

func TestRemoveListener(t *testing.T) {
	evsw := NewEventSwitch()

	var (
		mtx   sync.Mutex
		count int
	)
	cb := func(EventData) error {
		mtx.Lock()
		defer mtx.Unlock()
		count++
		return nil
	}
	require.NoError(t, evsw.AddListenerForEvent("listener", "a", cb))
	require.NoError(t, evsw.AddListenerForEvent("listener", "b", cb))

	evsw.FireEvent("a", nil)
	evsw.FireEvent("b", nil)
	evsw.RemoveListener("listener")
	evsw.FireEvent("a", nil)
	evsw.FireEvent("b", nil)

	require.Equal(t, 2, count)
}

func TestRemoveListenerForEventKeepsOthers(t *testing.T) {
	evsw := NewEventSwitch()
	rec1, rec2 := &Recorder{}, &Recorder{}
	require.NoError(t, rec1.Listen(evsw, "one", "e"))
	require.NoError(t, rec2.Listen(evsw, "two", "e"))

	evsw.RemoveListenerForEvent("e", "one")
	evsw.FireEvent("e", 1)

	require.Equal(t, 0, rec1.Count("e"))
	require.Equal(t, 1, rec2.Count("e"))
}

func TestRecorderKeepsOrder(t *testing.T) {
	evsw := NewEventSwitch()
	rec := &Recorder{}
	require.NoError(t, rec.Listen(evsw, "audit", "x", "y"))

	evsw.FireEvent("x", 1)
	evsw.FireEvent("y", 2)
	evsw.FireEvent("z", 3)
	evsw.FireEvent("x", 4)

	got := rec.Events()
	require.Len(t, got, 3)
	require.Equal(t, Recorded{Event: "x", Data: 1}, got[0])
	require.Equal(t, Recorded{Event: "y", Data: 2}, got[1])
	require.Equal(t, Recorded{Event: "x", Data: 4}, got[2])
	require.Equal(t, 2, rec.Count("x"))

	rec.Reset()
	require.Empty(t, rec.Events())
}
