// Package session is the viewer's session controller: the prediction polling
// lifecycle, the recognition mode cycle, the deduplicated history of recognitions
// and the chat relay. It has no UI; a Sink receives every state change.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"signnet/backend"
	"signnet/log"
)

const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultChatTimeout    = 60 * time.Second
)

type Backend interface {
	Prediction(ctx context.Context) (backend.Prediction, error)
	SetMode(ctx context.Context, mode string) (backend.Ack, error)
	Chat(ctx context.Context, message string) (string, error)
}

// CaptureSource is the upstream video source restarted when polling resumes.
type CaptureSource interface {
	Restart() error
}

// Sink receives state changes. Methods are called with the controller's lock held,
// in the order the changes happened; they must not block or call back into the
// Controller.
type Sink interface {
	RunState(running bool)
	Mode(m Mode)
	Slots(d Display)
	History(entries []Event)
	Transcript(lines []Line)
}

type NopSink struct{}

func (NopSink) RunState(bool) {}
func (NopSink) Mode(Mode) {}
func (NopSink) Slots(Display) {}
func (NopSink) History([]Event) {}
func (NopSink) Transcript([]Line) {}

type nopCapture struct{}

func (nopCapture) Restart() error { return nil }

type Config struct {
	PollInterval   time.Duration
	Strict         bool
	RequestTimeout time.Duration
	ChatTimeout    time.Duration
	InitialMode    Mode
	Now            func() time.Time
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ChatTimeout <= 0 {
		c.ChatTimeout = DefaultChatTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// State is a point-in-time copy of everything the viewer shows.
type State struct {
	Running      bool
	Mode         Mode
	Display      Display
	History      []Event
	Transcript   []Line
	ChatsPending int
}

type Controller struct {
	cfg     Config
	backend Backend
	capture CaptureSource
	sink    Sink
	poller  *Poller

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	begun        bool
	closed       bool
	running      bool
	mode         Mode
	history      *History
	display      Display
	transcript   Transcript
	chatsPending int
	modeQueue    []Mode
	modeSending  bool

	inflight sync.WaitGroup
}

// New builds the controller for one session. The run state starts as running;
// polling begins with Begin.
func New(cfg Config, be Backend, capture CaptureSource, sink Sink) *Controller {
	cfg = cfg.withDefaults()
	if capture == nil {
		capture = nopCapture{}
	}
	if sink == nil {
		sink = NopSink{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:     cfg,
		backend: be,
		capture: capture,
		sink:    sink,
		ctx:     ctx,
		cancel:  cancel,
		running: true,
		mode:    cfg.InitialMode,
		history: NewHistory(cfg.Now),
		display: NewDisplay(),
	}
	c.poller = NewPoller(cfg.PollInterval, cfg.Strict, c.poll)
	return c
}

// Begin starts polling in the initial running state and publishes the initial view.
// A non-default initial mode is sent to the backend.
func (c *Controller) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.begun || c.closed {
		return
	}
	c.begun = true
	if c.running {
		c.poller.Start()
	}
	c.sink.RunState(c.running)
	c.sink.Mode(c.mode)
	c.sink.Slots(c.display)
	if c.mode != ModeAuto {
		c.notifyMode(c.mode)
	}
}

// Start resumes polling and restarts the capture source. No-op while running or
// after Close.
func (c *Controller) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.closed {
		return false
	}
	if err := c.capture.Restart(); err != nil {
		log.Warnf("capture restart: %v", err)
	}
	c.poller.Start()
	c.running = true
	log.Info("polling_start")
	c.sink.RunState(true)
	return true
}

// Stop cancels the polling timer. A fetch already in flight still dispatches.
// No-op while stopped.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	c.poller.Stop()
	c.running = false
	log.Info("polling_stop")
	c.sink.RunState(false)
	return true
}

// ToggleRun stops a running session or starts a stopped one.
func (c *Controller) ToggleRun() bool {
	if c.Running() {
		c.Stop()
		return false
	}
	return c.Start()
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// ToggleMode advances the mode cycle and notifies the backend without waiting.
// The local mode stands even if the backend rejects it.
func (c *Controller) ToggleMode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = c.mode.Next()
	c.sink.Mode(c.mode)
	c.notifyMode(c.mode)
	return c.mode
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// notifyMode queues m for the backend. One sender drains the queue, so the backend
// sees modes in toggle order. Caller holds c.mu.
func (c *Controller) notifyMode(m Mode) {
	c.modeQueue = append(c.modeQueue, m)
	if c.modeSending {
		return
	}
	c.modeSending = true
	c.inflight.Add(1)
	go c.sendModes()
}

func (c *Controller) sendModes() {
	defer c.inflight.Done()
	for {
		c.mu.Lock()
		if len(c.modeQueue) == 0 {
			c.modeSending = false
			c.mu.Unlock()
			return
		}
		m := c.modeQueue[0]
		c.modeQueue = c.modeQueue[1:]
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.RequestTimeout)
		ack, err := c.backend.SetMode(ctx, m.String())
		cancel()
		log.ModeSet(m.String(), ack, err)
	}
}

func (c *Controller) poll() {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.RequestTimeout)
	defer cancel()
	p, err := c.backend.Prediction(ctx)
	if err != nil {
		log.PollFailed(err)
		return
	}
	c.Dispatch(p)
}

// Dispatch applies one prediction to the display and feeds qualifying ones into
// the history.
func (c *Controller) Dispatch(p backend.Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.display.apply(p)
	if p.Type != backend.KindStatic && p.Type != backend.KindDynamic {
		log.Debugf("ignoring prediction type %q", p.Type)
	}
	c.sink.Slots(c.display)
	if ok && c.history.Submit(sub.category, sub.text, sub.confidence) {
		log.Recognition(sub.category.String(), sub.text, sub.confidence)
		c.sink.History(c.history.Entries())
	}
}

func (c *Controller) Display() Display {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.display
}

func (c *Controller) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history.Clear()
	c.sink.History(c.history.Entries())
}

func (c *Controller) History() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Entries()
}

// SubmitChat sends message to the conversational backend. It returns false, and
// does nothing, when the message is blank. The reply (or the error) is appended
// to the transcript when it arrives; several exchanges may be in flight at once.
func (c *Controller) SubmitChat(message string) bool {
	text := strings.TrimSpace(message)
	if text == "" {
		return false
	}

	c.mu.Lock()
	c.transcript.Append(userLine(text))
	c.chatsPending++
	c.sink.Transcript(c.transcript.Lines())
	c.mu.Unlock()

	id := uuid.NewString()
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		start := time.Now()
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.ChatTimeout)
		defer cancel()
		reply, err := c.backend.Chat(ctx, text)
		log.ChatExchange(id, time.Since(start), len(reply), err)

		line := replyLine(reply)
		if err != nil {
			line = errorLine(err)
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.chatsPending--
		c.transcript.Append(line)
		c.sink.Transcript(c.transcript.Lines())
	}()
	return true
}

func (c *Controller) Transcript() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Lines()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Running:      c.running,
		Mode:         c.mode,
		Display:      c.display,
		History:      c.history.Entries(),
		Transcript:   c.transcript.Lines(),
		ChatsPending: c.chatsPending,
	}
}

// Settle blocks until pending mode notifications and chat exchanges have finished.
// Prediction fetches are not waited for.
func (c *Controller) Settle() {
	c.inflight.Wait()
}

// Wait blocks until background work (mode notifications, chat exchanges and
// prediction fetches) has finished. Call it once polling is stopped.
func (c *Controller) Wait() {
	c.poller.Wait()
	c.inflight.Wait()
}

// Close ends the session: polling stops for good and outstanding requests are
// cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	c.poller.Stop()
	c.closed = true
	if c.running {
		c.running = false
		c.sink.RunState(false)
	}
	c.mu.Unlock()
	c.cancel()
	c.Wait()
}
