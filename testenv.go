package main

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"signnet/session"
)

// runTestMode drives ctrl from line commands on in until QUIT or EOF. Output goes
// through sink so it interleaves cleanly with the controller's own events.
func runTestMode(ctrl *session.Controller, in io.Reader, sink *printSink) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(cmd) {
		case "":
		case "START":
			if !ctrl.Start() {
				sink.printf("RUN unchanged")
			}
		case "STOP":
			if !ctrl.Stop() {
				sink.printf("RUN unchanged")
			}
		case "TOGGLE":
			ctrl.ToggleRun()
		case "MODE":
			ctrl.ToggleMode()
		case "CLEAR":
			ctrl.ClearHistory()
		case "CHAT":
			if !ctrl.SubmitChat(arg) {
				sink.printf("CHAT ignored")
			}
		case "SLEEP":
			if ms, err := strconv.Atoi(strings.TrimSpace(arg)); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "WAIT":
			ctrl.Settle()
		case "DUMP":
			dumpState(ctrl.State(), sink)
		case "QUIT":
			return
		default:
			sink.printf("ERR unknown command %q", cmd)
		}
	}
}

func dumpState(st session.State, sink *printSink) {
	sink.printf("STATE running=%t mode=%s chats_pending=%d", st.Running, st.Mode, st.ChatsPending)
	sink.printf("STATE static=%s dynamic=%s", slotText(st.Display.Static), slotText(st.Display.Dynamic))
	for i, e := range st.History {
		sink.printf("STATE history[%d] %s %s", i, e.Clock(), e.Label())
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, l := range st.Transcript {
		writeLine(sink.w, "STATE chat ", l)
	}
}
