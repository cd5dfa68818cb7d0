package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"signnet/backend"
	"signnet/config"
	"signnet/doctor"
	"signnet/feed"
	"signnet/log"
	"signnet/session"
	"signnet/shutdown"
)

var version = "dev"

// feedWatcher is the capture collaborator: feed.Monitor, feed.Nop or the fake backend.
type feedWatcher interface {
	Run()
	Restart() error
	Close()
}

// fakeCapture lets the fake backend stand in as the capture source.
type fakeCapture struct{ *backend.Fake }

func (fakeCapture) Run()   {}
func (fakeCapture) Close() {}

var shutdownOnce sync.Once

func gracefulShutdown(ctrl *session.Controller, watcher feedWatcher) {
	shutdownOnce.Do(func() {
		ctrl.Close()
		watcher.Close()
		st := ctrl.State()
		log.SessionEnd(len(st.History), len(st.Transcript))
		log.Close()
	})
}

func main() {
	cfg := config.Load()

	backendFlag := flag.String("backend", cfg.BackendURL, "Recognition backend base URL")
	intervalFlag := flag.Duration("interval", cfg.PollInterval, "Prediction polling interval")
	timeoutFlag := flag.Duration("timeout", cfg.RequestTimeout, "Timeout for prediction and mode requests")
	chatTimeoutFlag := flag.Duration("chat-timeout", cfg.ChatTimeout, "Timeout for chat requests")
	strictFlag := flag.Bool("strict", cfg.StrictPoll, "Skip a poll while the previous fetch is still running")
	modeFlag := flag.String("mode", cfg.Mode, "Initial recognition mode: auto, static or dynamic")
	fakeFlag := flag.Bool("fake", false, "Use a built-in fake backend instead of HTTP")
	feedFlag := flag.Bool("feed", true, "Watch the backend video feed")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	doctorFlag := flag.Bool("doctor", false, "Check the backend endpoints and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	logPathFlag := flag.String("logpath", cfg.LogPath, "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.Parse()

	cfg.BackendURL = *backendFlag
	cfg.PollInterval = *intervalFlag
	cfg.RequestTimeout = *timeoutFlag
	cfg.ChatTimeout = *chatTimeoutFlag
	cfg.StrictPoll = *strictFlag
	cfg.Mode = *modeFlag

	if *versionFlag {
		fmt.Printf("signnet %s\n", version)
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	var be session.Backend
	var client *backend.Client
	if *fakeFlag {
		be = backend.NewFake()
	} else {
		client, err = backend.New(cfg.BackendURL, cfg.RequestTimeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		be = client
	}

	if *doctorFlag {
		ctx, stop := shutdown.Context(context.Background())
		code := doctor.Run(ctx, be.(doctor.Backend), cfg.BackendURL, cfg.RequestTimeout, os.Stdout)
		stop()
		os.Exit(code)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.SessionStart(cfg.BackendURL, cfg.PollInterval, cfg.StrictPoll, cfg.Mode)

	headless := *testFlag || !*tuiFlag || !term.IsTerminal(int(os.Stdin.Fd()))
	if headless {
		runHeadless(cfg, be, client, *feedFlag)
		return
	}
	runTUI(cfg, be, client, *feedFlag)
}

func newWatcher(be session.Backend, client *backend.Client, enabled bool, onStatus func(feed.Status)) feedWatcher {
	if f, ok := be.(*backend.Fake); ok {
		return fakeCapture{f}
	}
	if !enabled || client == nil {
		return feed.Nop{}
	}
	return feed.NewMonitor(client, onStatus)
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		PollInterval:   cfg.PollInterval,
		Strict:         cfg.StrictPoll,
		RequestTimeout: cfg.RequestTimeout,
		ChatTimeout:    cfg.ChatTimeout,
		InitialMode:    cfg.InitialMode(),
	}
}

func runHeadless(cfg *config.Config, be session.Backend, client *backend.Client, feedEnabled bool) {
	sink := newPrintSink(os.Stdout, true)
	watcher := newWatcher(be, client, feedEnabled, func(st feed.Status) {
		if st.Err != nil {
			sink.printf("FEED error %v", st.Err)
		} else if st.Frames == 0 {
			sink.printf("FEED connected")
		}
	})
	ctrl := session.New(sessionConfig(cfg), be, watcher, sink)

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown(ctrl, watcher)
		os.Exit(0)
	}()

	watcher.Run()
	ctrl.Begin()
	runTestMode(ctrl, os.Stdin, sink)
	gracefulShutdown(ctrl, watcher)
}

func runTUI(cfg *config.Config, be session.Backend, client *backend.Client, feedEnabled bool) {
	sink := newTUISink()
	var program *tea.Program
	programReady := make(chan struct{})

	watcher := newWatcher(be, client, feedEnabled, func(st feed.Status) {
		<-programReady
		program.Send(feedStatusMsg{Status: st})
	})
	ctrl := session.New(sessionConfig(cfg), be, watcher, sink)

	_, isMonitor := watcher.(*feed.Monitor)
	program = NewTUIProgram(newTUIModel(ctrl, cfg.BackendURL, isMonitor))
	close(programReady)

	done := make(chan struct{})
	go sink.forward(program, done)

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		select {
		case <-sigChan:
			program.Quit()
		case <-done:
		}
	}()

	watcher.Run()
	ctrl.Begin()
	if _, err := program.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
	}
	close(done)
	gracefulShutdown(ctrl, watcher)
}
