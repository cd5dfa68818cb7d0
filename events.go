package main

import (
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"signnet/feed"
	"signnet/session"
)

// tuiSink coalesces controller changes into a single pending refresh. The
// controller calls it with its lock held, so it never blocks; the TUI pulls the
// full state when the refresh arrives.
type tuiSink struct {
	pending chan struct{}
}

type refreshMsg struct{}

type feedStatusMsg struct{ Status feed.Status }

func newTUISink() *tuiSink {
	return &tuiSink{pending: make(chan struct{}, 1)}
}

func (s *tuiSink) poke() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

func (s *tuiSink) RunState(bool)             { s.poke() }
func (s *tuiSink) Mode(session.Mode)         { s.poke() }
func (s *tuiSink) Slots(session.Display)     { s.poke() }
func (s *tuiSink) History([]session.Event)   { s.poke() }
func (s *tuiSink) Transcript([]session.Line) { s.poke() }

// forward delivers refreshes to p until done is closed.
func (s *tuiSink) forward(p *tea.Program, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-s.pending:
			p.Send(refreshMsg{})
		}
	}
}

// printSink writes one line per change, for headless runs.
type printSink struct {
	mu        sync.Mutex
	w         io.Writer
	slots     bool
	lastLines int
}

func newPrintSink(w io.Writer, slots bool) *printSink {
	return &printSink{w: w, slots: slots}
}

func (s *printSink) printf(format string, args ...any) {
	s.mu.Lock()
	fmt.Fprintf(s.w, format+"\n", args...)
	s.mu.Unlock()
}

func (s *printSink) RunState(running bool) {
	if running {
		s.printf("RUN started")
	} else {
		s.printf("RUN stopped")
	}
}

func (s *printSink) Mode(m session.Mode) {
	s.printf("MODE %s", m)
}

func (s *printSink) Slots(d session.Display) {
	if !s.slots {
		return
	}
	s.printf("SLOTS static=%s dynamic=%s", slotText(d.Static), slotText(d.Dynamic))
}

func (s *printSink) History(entries []session.Event) {
	if len(entries) == 0 {
		s.printf("HISTORY cleared")
		return
	}
	s.printf("HISTORY %d %s", len(entries), entries[0].Label())
}

// Transcript prints only the lines added since the last call.
func (s *printSink) Transcript(lines []session.Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lines[min(s.lastLines, len(lines)):] {
		writeLine(s.w, "CHAT ", l)
	}
	s.lastLines = len(lines)
}

// writeLine prints l after prefix. Continuation rows of a multi-line message are
// indented so every line that starts with prefix is one event.
func writeLine(w io.Writer, prefix string, l session.Line) {
	for i, row := range l.Rows() {
		if i == 0 {
			fmt.Fprintf(w, "%s%s: %s\n", prefix, l.Speaker, row)
		} else {
			fmt.Fprintf(w, "    %s\n", row)
		}
	}
}

func slotText(sl session.Slot) string {
	if sl.Text == session.Placeholder {
		return session.Placeholder
	}
	mark := ""
	if sl.Active {
		mark = "*"
	}
	return fmt.Sprintf("%s(%.0f%%)%s", sl.Text, sl.Fraction*100, mark)
}
