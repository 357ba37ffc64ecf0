package sim

import (
	"fmt"
	"strings"
	"sync"
)

// Event categories recorded by the world.
const (
	CatRole  = "role"  // promote, demote
	CatPath  = "path"  // cache_hit, cache_evict, fresh, cached, no_path
	CatLife  = "life"  // spawn, arrive, unreachable
	CatIndex = "index" // stale_remove
)

// Event is one recorded occurrence during a run.
type Event struct {
	Tick     int
	Agent    string // handle label, or "--" for world-level events
	Category string
	Key      string
	Value    string
	NumVal   float64
}

// String formats the event as a fixed-width log line.
//
//	[T=042] #12.0    role   promote         leaders=0
func (e Event) String() string {
	return fmt.Sprintf("[T=%03d] %-8s %-6s %-15s %s",
		e.Tick, e.Agent, e.Category, e.Key, e.Value)
}

// EventLog collects structured events. It is safe for concurrent use so
// parallel ticks can write to it. A positive limit keeps only the most
// recent events.
type EventLog struct {
	mu      sync.Mutex
	entries []Event
	limit   int
}

// NewEventLog creates an event log. limit <= 0 keeps everything.
func NewEventLog(limit int) *EventLog {
	return &EventLog{limit: limit}
}

// Add records a new event.
func (l *EventLog) Add(tick int, agent, category, key, value string, numVal float64) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Event{
		Tick:     tick,
		Agent:    agent,
		Category: category,
		Key:      key,
		Value:    value,
		NumVal:   numVal,
	})
	// Trim in batches so a full log does not shift on every Add.
	if l.limit > 0 && len(l.entries) >= 2*l.limit {
		n := copy(l.entries, l.entries[len(l.entries)-l.limit:])
		l.entries = l.entries[:n]
	}
}

func (l *EventLog) view() []Event {
	if l.limit > 0 && len(l.entries) > l.limit {
		return l.entries[len(l.entries)-l.limit:]
	}
	return l.entries
}

// Entries returns a copy of the recorded events, oldest first.
func (l *EventLog) Entries() []Event {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.view()...)
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.view())
}

// Reset drops every event.
func (l *EventLog) Reset() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.entries = l.entries[:0]
	l.mu.Unlock()
}

// Filter returns events matching category and key. An empty string matches
// anything.
func (l *EventLog) Filter(category, key string) []Event {
	var out []Event
	for _, e := range l.Entries() {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterAgent returns the events recorded for one agent label.
func (l *EventLog) FilterAgent(label string) []Event {
	var out []Event
	for _, e := range l.Entries() {
		if e.Agent == label {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events match category and key.
func (l *EventLog) Count(category, key string) int {
	return len(l.Filter(category, key))
}

// LastOf returns the most recent event matching category and key.
func (l *EventLog) LastOf(category, key string) (Event, bool) {
	entries := l.Filter(category, key)
	if len(entries) == 0 {
		return Event{}, false
	}
	return entries[len(entries)-1], true
}

// HasEntry reports whether any event matches category, key and a value substring.
func (l *EventLog) HasEntry(category, key, valueSubstr string) bool {
	for _, e := range l.Filter(category, key) {
		if valueSubstr == "" || strings.Contains(e.Value, valueSubstr) {
			return true
		}
	}
	return false
}

// Format returns the log as one string, one event per line.
func (l *EventLog) Format() string {
	var sb strings.Builder
	for _, e := range l.Entries() {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
