// Package feed watches the backend's MJPEG video stream. A terminal cannot draw
// the frames, so the monitor counts them and reports connection state and rate.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"signnet/log"
)

const (
	reconnectDelay = 2 * time.Second
	reportEvery    = time.Second
)

// Source opens the video stream. backend.Client satisfies it.
type Source interface {
	OpenFeed(ctx context.Context) (*http.Response, error)
}

type Status struct {
	Connected bool
	Frames    int64
	FPS       float64
	Err       error
}

// Monitor keeps one connection to the feed open, reconnecting after failures.
type Monitor struct {
	src      Source
	onStatus func(Status)

	reconnect time.Duration
	every     time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	conn     context.CancelFunc
	restarts chan struct{}
	started  bool
	wg       sync.WaitGroup
}

func NewMonitor(src Source, onStatus func(Status)) *Monitor {
	if onStatus == nil {
		onStatus = func(Status) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		src:       src,
		onStatus:  onStatus,
		reconnect: reconnectDelay,
		every:     reportEvery,
		ctx:       ctx,
		cancel:    cancel,
		restarts:  make(chan struct{}, 1),
	}
}

// Run starts the monitor in the background. Calling it again does nothing.
func (m *Monitor) Run() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.wg.Add(1)
	go m.loop()
}

// Restart drops the current stream and connects again right away.
func (m *Monitor) Restart() error {
	if m.ctx.Err() != nil {
		return errors.New("feed monitor closed")
	}
	m.mu.Lock()
	if m.conn != nil {
		m.conn()
	}
	m.mu.Unlock()
	select {
	case m.restarts <- struct{}{}:
	default:
	}
	return nil
}

func (m *Monitor) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) loop() {
	defer m.wg.Done()
	for {
		connCtx, cancel := context.WithCancel(m.ctx)
		m.mu.Lock()
		m.conn = cancel
		m.mu.Unlock()

		// drain a restart that raced with the previous connection
		select {
		case <-m.restarts:
		default:
		}

		err := m.stream(connCtx)
		restarted := connCtx.Err() != nil
		cancel()

		if m.ctx.Err() != nil {
			return
		}
		if restarted {
			continue
		}
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		log.FeedStatus(false, 0, err)
		m.onStatus(Status{Err: err})

		select {
		case <-m.ctx.Done():
			return
		case <-m.restarts:
		case <-time.After(m.reconnect):
		}
	}
}

func (m *Monitor) stream(ctx context.Context) error {
	resp, err := m.src.OpenFeed(ctx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	boundary, err := boundaryOf(resp.Header.Get("Content-Type"))
	if err != nil {
		return err
	}
	log.FeedStatus(true, 0, nil)
	m.onStatus(Status{Connected: true})

	mr := multipart.NewReader(resp.Body, boundary)
	var total, window int64
	windowStart := time.Now()
	for {
		part, err := mr.NextPart()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return fmt.Errorf("read frame: %w", err)
		}
		_, err = io.Copy(io.Discard, part)
		part.Close()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		total++
		window++
		if elapsed := time.Since(windowStart); elapsed >= m.every {
			m.onStatus(Status{Connected: true, Frames: total, FPS: float64(window) / elapsed.Seconds()})
			window = 0
			windowStart = time.Now()
		}
	}
}

func boundaryOf(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("feed content type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("feed content type %q is not multipart", mediaType)
	}
	b := params["boundary"]
	if b == "" {
		return "", fmt.Errorf("feed content type %q has no boundary", contentType)
	}
	return b, nil
}

// Nop stands in for the monitor when there is no feed to watch.
type Nop struct{}

func (Nop) Run()           {}
func (Nop) Restart() error { return nil }
func (Nop) Close()         {}
