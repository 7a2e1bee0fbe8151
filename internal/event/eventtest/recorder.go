// Package eventtest provides an in-memory Emitter for tests.
package eventtest

import "sync"

// Emitted is one recorded event.
type Emitted struct {
	ConnID string // receiver connection, empty for broadcasts
	Group  string // broadcast group, empty for direct emits
	Event  string
	Data   any
}

// Recorder implements event.Emitter by recording everything it is asked to
// deliver. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Emitted
	groups map[string]map[string]bool // group -> connID set
}

func NewRecorder() *Recorder {
	return &Recorder{groups: make(map[string]map[string]bool)}
}

func (r *Recorder) Emit(connID, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Emitted{ConnID: connID, Event: event, Data: data})
}

func (r *Recorder) Broadcast(group, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Emitted{Group: group, Event: event, Data: data})
}

func (r *Recorder) Join(connID, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.groups[group] == nil {
		r.groups[group] = make(map[string]bool)
	}
	r.groups[group][connID] = true
}

func (r *Recorder) Leave(connID, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.groups[group] != nil {
		delete(r.groups[group], connID)
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Emitted, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns recorded events with the given name, in order.
func (r *Recorder) Named(event string) []Emitted {
	var out []Emitted
	for _, e := range r.Events() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// InGroup reports whether connID has joined group.
func (r *Recorder) InGroup(connID, group string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.groups[group][connID]
}
