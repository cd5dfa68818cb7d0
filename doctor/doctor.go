package doctor

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"signnet/backend"
)

// Backend is the part of the backend contract the checks exercise.
type Backend interface {
	Prediction(ctx context.Context) (backend.Prediction, error)
	SetMode(ctx context.Context, mode string) (backend.Ack, error)
	Chat(ctx context.Context, message string) (string, error)
}

// feedOpener is implemented by backends that serve a video feed.
type feedOpener interface {
	OpenFeed(ctx context.Context) (*http.Response, error)
}

type check struct {
	name string
	run  func(ctx context.Context, be Backend, out io.Writer) error
}

var checks = []check{
	{"prediction", checkPrediction},
	{"set mode", checkSetMode},
	{"chat", checkChat},
	{"video feed", checkFeed},
}

// Run executes the backend checks against be and returns an exit code (0=all pass, 1=any fail).
// Every check runs even if an earlier one fails; each gets its own timeout.
func Run(ctx context.Context, be Backend, target string, timeout time.Duration, out io.Writer) int {
	fmt.Fprintln(out, "signnet doctor - backend diagnostics")
	fmt.Fprintln(out, "====================================")
	fmt.Fprintf(out, "backend: %s\n", target)

	allPass := true
	for i, c := range checks {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(checks), c.name)

		cctx, cancel := context.WithTimeout(ctx, timeout)
		err := c.run(cctx, be, out)
		cancel()
		if err != nil {
			fmt.Fprintf(out, "  FAIL: %v\n", err)
			allPass = false
			continue
		}
		if ctx.Err() != nil {
			fmt.Fprintln(out, "  interrupted")
			return 1
		}
	}

	fmt.Fprintln(out)
	if allPass {
		fmt.Fprintln(out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(out, "Some checks failed. See details above.")
	return 1
}

func checkPrediction(ctx context.Context, be Backend, out io.Writer) error {
	start := time.Now()
	p, err := be.Prediction(ctx)
	if err != nil {
		return err
	}
	kind := p.Type
	if kind == "" {
		kind = "none"
	}
	fmt.Fprintf(out, "  PASS: type=%s text=%q confidence=%.2f (%dms)\n",
		kind, p.Text, p.Confidence, time.Since(start).Milliseconds())
	return nil
}

// checkSetMode sends "auto", the mode every session starts in.
func checkSetMode(ctx context.Context, be Backend, out io.Writer) error {
	ack, err := be.SetMode(ctx, "auto")
	if err != nil {
		return err
	}
	if status, ok := ack["status"].(string); ok && status != "success" {
		return fmt.Errorf("backend answered status %q", status)
	}
	fmt.Fprintf(out, "  PASS: mode acknowledged %v\n", ack)
	return nil
}

func checkChat(ctx context.Context, be Backend, out io.Writer) error {
	start := time.Now()
	reply, err := be.Chat(ctx, "hello")
	if err != nil {
		return err
	}
	first := strings.SplitN(reply, "\n", 2)[0]
	if len(first) > 60 {
		first = first[:60] + "..."
	}
	fmt.Fprintf(out, "  PASS: reply %q (%dms)\n", first, time.Since(start).Milliseconds())
	return nil
}

func checkFeed(ctx context.Context, be Backend, out io.Writer) error {
	fo, ok := be.(feedOpener)
	if !ok {
		fmt.Fprintln(out, "  SKIP: backend has no video feed")
		return nil
	}
	resp, err := fo.OpenFeed(ctx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return fmt.Errorf("unexpected content type %q", ct)
	}
	buf := make([]byte, 512)
	n, err := io.ReadAtLeast(resp.Body, buf, 1)
	if err != nil {
		return fmt.Errorf("no data on stream: %w", err)
	}
	fmt.Fprintf(out, "  PASS: streaming %s (%d bytes received)\n", mediaType, n)
	return nil
}
