package client

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleOnEmitsInOrder(t *testing.T) {
	h := newHandle()
	var got []int
	h.On(EventStatus, func(ev Event) { got = append(got, 1) })
	h.On(EventStatus, func(ev Event) { got = append(got, 2) })

	h.emit(Event{Type: EventStatus, Status: &StatusEvent{Stage: StagePending}})

	assert.Equal(t, []int{1, 2}, got)
}

func TestHandleOffRemovesFirstMatchByIdentity(t *testing.T) {
	h := newHandle()
	var calls int
	listener := func(ev Event) { calls++ }

	h.On(EventData, listener)
	h.Off(EventData, listener)
	h.emit(Event{Type: EventData, Data: &DataEvent{}})

	assert.Equal(t, 0, calls)
}

func TestHandleDestroyClearsListeners(t *testing.T) {
	h := newHandle()
	var calls int
	h.On(EventLog, func(ev Event) { calls++ })
	h.Destroy()
	h.emit(Event{Type: EventLog, Log: &LogEvent{}})

	assert.Equal(t, 0, calls)
}

func TestHandleCancelInvokesCancelFnOnEveryCall(t *testing.T) {
	h := newHandle()
	var mu sync.Mutex
	var calls int
	h.cancelFn = func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}

	h.Cancel()
	h.Cancel()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, calls, "Handle.Cancel itself does not dedupe; idempotency is submission.cancel's job")
}
