package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	diagFileName = "diagnostics_log.txt"
	envLogPath   = "SIGNNET_LOG_PATH"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

// RequestMetrics is the per-request network timing recorded by the backend client.
type RequestMetrics struct {
	DNSMs      float64
	TCPMs      float64
	TLSMs      float64
	TTFBMs     float64
	TotalMs    float64
	ConnReused bool
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: SIGNNET_LOG_PATH environment variable
	if envPath := os.Getenv(envLogPath); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, diagFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	logReady = false
}

func ready() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return logReady
}

func Info(msg string) {
	if ready() {
		diagLog.Info().Msg(msg)
	}
}

func Debugf(format string, args ...any) {
	if ready() {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if ready() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if ready() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if ready() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if ready() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(backendURL string, interval time.Duration, strict bool, mode string) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("backend", backendURL).
		Dur("interval", interval).
		Bool("strict", strict).
		Str("mode", mode).
		Msg("session_start")
}

func SessionEnd(historyLen, chatLines int) {
	if !ready() {
		return
	}
	diagLog.Info().
		Int("history", historyLen).
		Int("chat_lines", chatLines).
		Msg("session_end")
}

// Recognition records an event accepted into the history buffer.
func Recognition(category, text string, confidence float64) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("category", category).
		Str("text", text).
		Float64("confidence", confidence).
		Msg("recognition")
}

func PollFailed(err error) {
	if !ready() {
		return
	}
	diagLog.Warn().Err(err).Msg("poll_failed")
}

func ModeSet(mode string, ack map[string]any, err error) {
	if !ready() {
		return
	}
	if err != nil {
		diagLog.Warn().Str("mode", mode).Err(err).Msg("mode_set_failed")
		return
	}
	diagLog.Info().Str("mode", mode).Interface("ack", ack).Msg("mode_set")
}

func ChatExchange(id string, elapsed time.Duration, replyLen int, err error) {
	if !ready() {
		return
	}
	if err != nil {
		diagLog.Warn().Str("id", id).Dur("elapsed", elapsed).Err(err).Msg("chat_failed")
		return
	}
	diagLog.Info().
		Str("id", id).
		Dur("elapsed", elapsed).
		Int("reply_len", replyLen).
		Msg("chat_exchange")
}

func Request(op string, status int, m RequestMetrics) {
	if !ready() {
		return
	}
	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}
	diagLog.Debug().
		Str("op", op).
		Int("status", status).
		Str("conn", connStatus).
		Float64("dns_ms", m.DNSMs).
		Float64("tcp_ms", m.TCPMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Msg("request")
}

func FeedStatus(connected bool, fps float64, err error) {
	if !ready() {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Warn().Err(err)
	}
	ev.Bool("connected", connected).Float64("fps", fps).Msg("feed_status")
}
