package session

import "strings"

type Speaker int

const (
	User Speaker = iota
	Bot
)

func (s Speaker) String() string {
	if s == Bot {
		return "Bot"
	}
	return "You"
}

// Line is one transcript entry. Failed marks a bot line that reports an error
// instead of a reply.
type Line struct {
	Speaker Speaker
	Text    string
	Failed  bool
}

// Rows splits the line at newlines for display.
func (l Line) Rows() []string {
	return strings.Split(l.Text, "\n")
}

// Transcript is append-only and has no size limit.
type Transcript struct {
	lines []Line
}

func (t *Transcript) Append(l Line) {
	t.lines = append(t.lines, l)
}

func (t *Transcript) Len() int { return len(t.lines) }

func (t *Transcript) Lines() []Line {
	out := make([]Line, len(t.lines))
	copy(out, t.lines)
	return out
}

func userLine(msg string) Line {
	return Line{Speaker: User, Text: msg}
}

func replyLine(reply string) Line {
	reply = strings.ReplaceAll(reply, "\r\n", "\n")
	reply = strings.ReplaceAll(reply, "\r", "\n")
	return Line{Speaker: Bot, Text: reply}
}

func errorLine(err error) Line {
	return Line{Speaker: Bot, Text: "⚠ Error: " + err.Error(), Failed: true}
}
