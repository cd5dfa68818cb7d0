package session

import (
	"fmt"
	"math"
	"time"
)

// HistoryCapacity is the number of recognitions kept for review.
const HistoryCapacity = 10

type Category int

const (
	Letter Category = iota
	Word
)

func (c Category) String() string {
	if c == Word {
		return "Word"
	}
	return "Letter"
}

// Event is one confidence-qualifying recognition. Values are never mutated after
// they enter the buffer.
type Event struct {
	Category   Category
	Text       string
	Confidence float64
	ObservedAt time.Time
}

// Label renders "Letter: A (95%)".
func (e Event) Label() string {
	return fmt.Sprintf("%s: %s (%d%%)", e.Category, e.Text, int(math.Round(e.Confidence*100)))
}

// Clock renders the wall-clock time the event was observed.
func (e Event) Clock() string {
	return e.ObservedAt.Format("15:04:05")
}

// History is a most-recent-first log capped at HistoryCapacity entries. A candidate
// equal to the current head (same category and text) is dropped.
type History struct {
	entries []Event
	now     func() time.Time
}

func NewHistory(now func() time.Time) *History {
	if now == nil {
		now = time.Now
	}
	return &History{
		entries: make([]Event, 0, HistoryCapacity+1),
		now:     now,
	}
}

// Submit inserts a new head entry and reports whether the buffer changed.
func (h *History) Submit(category Category, text string, confidence float64) bool {
	observedAt := h.now()
	if head, ok := h.Head(); ok && head.Category == category && head.Text == text {
		return false
	}

	h.entries = append(h.entries, Event{})
	copy(h.entries[1:], h.entries)
	h.entries[0] = Event{
		Category:   category,
		Text:       text,
		Confidence: confidence,
		ObservedAt: observedAt,
	}
	if len(h.entries) > HistoryCapacity {
		h.entries = h.entries[:HistoryCapacity]
	}
	return true
}

func (h *History) Clear() {
	h.entries = h.entries[:0]
}

func (h *History) Head() (Event, bool) {
	if len(h.entries) == 0 {
		return Event{}, false
	}
	return h.entries[0], true
}

func (h *History) Len() int { return len(h.entries) }

// Entries returns a copy, most recent first.
func (h *History) Entries() []Event {
	out := make([]Event, len(h.entries))
	copy(out, h.entries)
	return out
}
