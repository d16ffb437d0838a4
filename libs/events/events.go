// Package events is a synchronous pub-sub used to surface ledger events to
// auditors, indexers and tests.
package events

import (
	"fmt"
	"sync"
)

// EventData is the payload attached to a fired event. Concrete payloads are
// defined next to the event names in the types package.
type EventData interface{}

// Fireable is the interface that wraps the FireEvent method.
//
// FireEvent fires an event with the given name and data.
type Fireable interface {
	FireEvent(event string, data EventData)
}

// EventSwitch is the interface for synchronous pubsub, where listeners
// subscribe to certain events and, when an event is fired (see Fireable),
// are notified via a callback function.
//
// Listeners are added by calling AddListenerForEvent. They can be removed by
// calling either RemoveListenerForEvent or RemoveListener (for all events).
type EventSwitch interface {
	Fireable
	AddListenerForEvent(listenerID, event string, cb EventCallback) error
	RemoveListenerForEvent(event string, listenerID string)
	RemoveListener(listenerID string)
}

type eventSwitch struct {
	mtx        sync.RWMutex
	eventCells map[string]*eventCell
	listeners  map[string]*eventListener
}

func NewEventSwitch() EventSwitch {
	return &eventSwitch{
		eventCells: make(map[string]*eventCell),
		listeners:  make(map[string]*eventListener),
	}
}

func (evsw *eventSwitch) AddListenerForEvent(listenerID, event string, cb EventCallback) error {
	if cb == nil {
		return fmt.Errorf("nil callback for listener %q", listenerID)
	}

	// Get/Create eventCell and listener.
	evsw.mtx.Lock()
	eventCell := evsw.eventCells[event]
	if eventCell == nil {
		eventCell = newEventCell()
		evsw.eventCells[event] = eventCell
	}
	listener := evsw.listeners[listenerID]
	if listener == nil {
		listener = newEventListener(listenerID)
		evsw.listeners[listenerID] = listener
	}
	evsw.mtx.Unlock()

	if err := listener.addEvent(event); err != nil {
		return err
	}
	eventCell.addListener(listenerID, cb)
	return nil
}

func (evsw *eventSwitch) RemoveListener(listenerID string) {
	// Get and remove listener.
	evsw.mtx.RLock()
	listener := evsw.listeners[listenerID]
	evsw.mtx.RUnlock()
	if listener == nil {
		return
	}

	evsw.mtx.Lock()
	delete(evsw.listeners, listenerID)
	evsw.mtx.Unlock()

	// Remove callback for each event.
	listener.setRemoved()
	for _, event := range listener.getEvents() {
		evsw.RemoveListenerForEvent(event, listenerID)
	}
}

func (evsw *eventSwitch) RemoveListenerForEvent(event string, listenerID string) {
	evsw.mtx.Lock()
	defer evsw.mtx.Unlock()

	eventCell := evsw.eventCells[event]
	if eventCell == nil {
		return
	}

	// Remove listenerID from eventCell, and drop the cell once it is empty
	// so that fired events without listeners stay cheap.
	if eventCell.removeListener(listenerID) == 0 {
		delete(evsw.eventCells, event)
	}
}

func (evsw *eventSwitch) FireEvent(event string, data EventData) {
	// Get the eventCell
	evsw.mtx.RLock()
	eventCell := evsw.eventCells[event]
	evsw.mtx.RUnlock()

	if eventCell == nil {
		return
	}

	// Fire event for all listeners in eventCell
	eventCell.fireEvent(data)
}

//-----------------------------------------------------------------------------

// EventCallback is invoked synchronously from FireEvent. A returned error is
// swallowed: listeners cannot veto a committed ledger mutation.
type EventCallback func(data EventData) error

// eventCell handles keeping track of listener callbacks for a given event.
type eventCell struct {
	mtx       sync.RWMutex
	listeners map[string]EventCallback
}

func newEventCell() *eventCell {
	return &eventCell{
		listeners: make(map[string]EventCallback),
	}
}

func (cell *eventCell) addListener(listenerID string, cb EventCallback) {
	cell.mtx.Lock()
	defer cell.mtx.Unlock()
	cell.listeners[listenerID] = cb
}

func (cell *eventCell) removeListener(listenerID string) int {
	cell.mtx.Lock()
	defer cell.mtx.Unlock()
	delete(cell.listeners, listenerID)
	return len(cell.listeners)
}

func (cell *eventCell) fireEvent(data EventData) {
	cell.mtx.RLock()
	eventCallbacks := make([]EventCallback, 0, len(cell.listeners))
	for _, cb := range cell.listeners {
		eventCallbacks = append(eventCallbacks, cb)
	}
	cell.mtx.RUnlock()

	for _, cb := range eventCallbacks {
		_ = cb(data)
	}
}

//-----------------------------------------------------------------------------

type eventListener struct {
	id string

	mtx     sync.RWMutex
	removed bool
	events  []string
}

func newEventListener(id string) *eventListener {
	return &eventListener{
		id:     id,
		events: nil,
	}
}

func (evl *eventListener) addEvent(event string) error {
	evl.mtx.Lock()
	defer evl.mtx.Unlock()

	if evl.removed {
		return fmt.Errorf("listener %q was removed", evl.id)
	}
	evl.events = append(evl.events, event)
	return nil
}

func (evl *eventListener) getEvents() []string {
	evl.mtx.RLock()
	defer evl.mtx.RUnlock()

	events := make([]string, len(evl.events))
	copy(events, evl.events)
	return events
}

func (evl *eventListener) setRemoved() {
	evl.mtx.Lock()
	defer evl.mtx.Unlock()
	evl.removed = true
}

//-----------------------------------------------------------------------------

// Recorder is an EventSwitch listener that keeps every event it sees, in
// order. It is meant for audit trails and tests.
type Recorder struct {
	mtx    sync.Mutex
	events []Recorded
}

// Recorded is one event captured by a Recorder.
type Recorded struct {
	Event string
	Data  EventData
}

// Listen subscribes the recorder to each of the given events.
func (r *Recorder) Listen(evsw EventSwitch, listenerID string, events ...string) error {
	for _, event := range events {
		event := event
		err := evsw.AddListenerForEvent(listenerID, event, func(data EventData) error {
			r.mtx.Lock()
			defer r.mtx.Unlock()
			r.events = append(r.events, Recorded{Event: event, Data: data})
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Events returns a copy of every event recorded so far.
func (r *Recorder) Events() []Recorded {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many times event was recorded.
func (r *Recorder) Count(event string) int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.events = nil
}
