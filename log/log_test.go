package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func readDiag(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, diagFileName))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/signnet-log")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/signnet-log" {
		t.Errorf("got %q, want /tmp/signnet-log", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv(envLogPath, "/tmp/signnet-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/signnet-env-log" {
		t.Errorf("got %q, want /tmp/signnet-env-log", got)
	}
}

func TestResolveDirFlagBeatsEnv(t *testing.T) {
	t.Setenv(envLogPath, "/tmp/from-env")
	got, err := ResolveDir("/tmp/from-flag")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/from-flag" {
		t.Errorf("got %q, want /tmp/from-flag", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv(envLogPath, "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFile(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(tmp, diagFileName)); err != nil {
		t.Errorf("%s not created: %v", diagFileName, err)
	}
}

func TestStructuredEvents(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	SessionStart("http://localhost:5000", time.Second, false, "auto")
	Recognition("Letter", "A", 0.95)
	ModeSet("static", nil, errors.New("connection refused"))
	ChatExchange("abc", 10*time.Millisecond, 5, nil)
	SessionEnd(1, 2)

	out := readDiag(t, tmp)
	for _, want := range []string{"session_start", "recognition", "text=A", "mode_set_failed", "connection refused", "chat_exchange", "session_end"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics log missing %q, got:\n%s", want, out)
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	setupLogDir(t)
	// none of these should panic or create files
	Info("hello")
	Warnf("x %d", 1)
	PollFailed(errors.New("boom"))
	FeedStatus(false, 0, nil)
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
