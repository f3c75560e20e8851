// Package taginput implements the multi-value tag control that drives a
// date facet chart, and the adapter wiring its add/remove events to a
// chart.State and a remote facet fetcher.
package taginput

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrEmpty is returned when nothing but delimiters and spaces was entered.
	ErrEmpty = errors.New("empty value")
	// ErrDuplicate is returned for a value that is already present.
	ErrDuplicate = errors.New("duplicate value")
	// ErrMaxItems is returned when the control is full.
	ErrMaxItems = errors.New("maximum number of items reached")
)

// EventKind distinguishes add and remove events.
type EventKind int

const (
	EventAdd EventKind = iota
	EventRemove
)

func (k EventKind) String() string {
	if k == EventRemove {
		return "removeItem"
	}
	return "addItem"
}

// Event is emitted once per added or removed value.
type Event struct {
	Kind  EventKind
	Value string
}

// TagInput holds an ordered set of unique values. It is safe for concurrent
// use; listeners run outside the lock in registration order.
type TagInput struct {
	mu        sync.Mutex
	opts      Options
	items     []string
	listeners map[int]func(Event)
	nextID    int
}

// New creates a control holding initial. Initial values go through the same
// checks as Add but emit no events; rejected ones are dropped.
func New(opts Options, initial ...string) *TagInput {
	t := &TagInput{opts: opts.withDefaults(), listeners: make(map[int]func(Event))}
	for _, v := range initial {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(t.items, v) || len(t.items) >= t.opts.MaxItems {
			continue
		}
		t.items = append(t.items, v)
	}
	return t
}

// Options returns the control's configuration.
func (t *TagInput) Options() Options {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opts
}

// Add splits raw on the delimiter and adds each trimmed value. Values that
// are duplicates or do not fit are rejected; the rest are still added. It
// returns the values added and every rejection joined into one error.
func (t *TagInput) Add(raw string) ([]string, error) {
	t.mu.Lock()
	var added []string
	var errs []error
	parts := strings.Split(raw, t.opts.Delimiter)
	for _, part := range parts {
		v := strings.TrimSpace(part)
		switch {
		case v == "":
			continue
		case slices.Contains(t.items, v):
			errs = append(errs, fmt.Errorf("%q: %w", v, ErrDuplicate))
		case len(t.items) >= t.opts.MaxItems:
			errs = append(errs, fmt.Errorf("%q: %w (%d)", v, ErrMaxItems, t.opts.MaxItems))
		default:
			t.items = append(t.items, v)
			added = append(added, v)
		}
	}
	if len(added) == 0 && len(errs) == 0 {
		errs = append(errs, ErrEmpty)
	}
	t.mu.Unlock()

	for _, v := range added {
		t.emit(Event{Kind: EventAdd, Value: v})
	}
	return added, errors.Join(errs...)
}

// Remove deletes value and reports whether it was present.
func (t *TagInput) Remove(value string) bool {
	t.mu.Lock()
	i := slices.Index(t.items, value)
	if i < 0 {
		t.mu.Unlock()
		return false
	}
	t.items = slices.Delete(t.items, i, i+1)
	t.mu.Unlock()

	t.emit(Event{Kind: EventRemove, Value: value})
	return true
}

// RemoveLast deletes the most recently added value.
func (t *TagInput) RemoveLast() (string, bool) {
	t.mu.Lock()
	if len(t.items) == 0 {
		t.mu.Unlock()
		return "", false
	}
	v := t.items[len(t.items)-1]
	t.mu.Unlock()
	return v, t.Remove(v)
}

// Items returns the values in insertion order.
func (t *TagInput) Items() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.items)
}

// Has reports whether value is present.
func (t *TagInput) Has(value string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Contains(t.items, value)
}

// Len is the number of values.
func (t *TagInput) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Full reports whether another value would be rejected with ErrMaxItems.
func (t *TagInput) Full() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items) >= t.opts.MaxItems
}

// Value joins the items with the delimiter, as the input's value attribute.
func (t *TagInput) Value() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.items, t.opts.Delimiter)
}

// AddItemText renders the add-item prompt for value.
func (t *TagInput) AddItemText(value string) string {
	return t.Options().AddItem(value)
}

// OnEvent registers fn for add and remove events. The returned func
// unregisters it.
func (t *TagInput) OnEvent(fn func(Event)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

func (t *TagInput) emit(e Event) {
	t.mu.Lock()
	fns := make([]func(Event), 0, len(t.listeners))
	for id := 0; id < t.nextID; id++ {
		if fn, ok := t.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}
