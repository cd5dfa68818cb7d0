// Package clipboard copies the recognition history and chat transcript to the
// system clipboard as plain text.
package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"

	"signnet/session"
)

var ErrUnsupported = errors.New("clipboard not available (install xclip, xsel or wl-clipboard)")

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

func Copy(text string) error {
	if cb.Unsupported {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}

// FormatHistory renders entries oldest first, one "15:04:05 Letter: A (95%)" line each.
func FormatHistory(entries []session.Event) string {
	var b strings.Builder
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		b.WriteString(e.Clock())
		b.WriteByte(' ')
		b.WriteString(e.Label())
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatTranscript renders the chat as "You: ..." / "Bot: ..." lines. Continuation
// lines of a multi-line reply are indented.
func FormatTranscript(lines []session.Line) string {
	var b strings.Builder
	for _, l := range lines {
		for i, row := range l.Rows() {
			if i == 0 {
				b.WriteString(l.Speaker.String())
				b.WriteString(": ")
			} else {
				b.WriteString("    ")
			}
			b.WriteString(row)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// CopyHistory puts the formatted history on the clipboard and returns how many
// entries were copied.
func CopyHistory(entries []session.Event) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	if err := Copy(FormatHistory(entries)); err != nil {
		return 0, err
	}
	return len(entries), nil
}
