package feed

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type urlSource string

func (u urlSource) OpenFeed(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(u), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp, nil
}

func mjpegServer(t *testing.T, conns *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
		mw := multipart.NewWriter(w)
		mw.SetBoundary("frame")
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		hdr := textproto.MIMEHeader{"Content-Type": {"image/jpeg"}}
		for {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
			part, err := mw.CreatePart(hdr)
			if err != nil {
				return
			}
			part.Write([]byte{0xff, 0xd8, 0xff, 0xd9})
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type recorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *recorder) record(s Status) {
	r.mu.Lock()
	r.statuses = append(r.statuses, s)
	r.mu.Unlock()
}

func (r *recorder) find(match func(Status) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.statuses {
		if match(s) {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMonitorCountsFrames(t *testing.T) {
	var conns atomic.Int64
	srv := mjpegServer(t, &conns)
	rec := &recorder{}
	m := NewMonitor(urlSource(srv.URL), rec.record)
	m.every = 50 * time.Millisecond
	m.Run()
	defer m.Close()

	waitFor(t, "connected status", func() bool {
		return rec.find(func(s Status) bool { return s.Connected && s.Frames == 0 })
	})
	waitFor(t, "frame rate report", func() bool {
		return rec.find(func(s Status) bool { return s.Frames > 0 && s.FPS > 0 })
	})
}

func TestMonitorRestartReconnects(t *testing.T) {
	var conns atomic.Int64
	srv := mjpegServer(t, &conns)
	m := NewMonitor(urlSource(srv.URL), nil)
	m.reconnect = time.Hour
	m.Run()
	defer m.Close()

	waitFor(t, "first connection", func() bool { return conns.Load() == 1 })
	if err := m.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	waitFor(t, "second connection", func() bool { return conns.Load() == 2 })
}

func TestMonitorReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "camera busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := &recorder{}
	m := NewMonitor(urlSource(srv.URL), rec.record)
	m.reconnect = 10 * time.Millisecond
	m.Run()
	defer m.Close()

	waitFor(t, "failure status", func() bool {
		return rec.find(func(s Status) bool { return !s.Connected && s.Err != nil })
	})
}

func TestMonitorRejectsNonMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	rec := &recorder{}
	m := NewMonitor(urlSource(srv.URL), rec.record)
	m.reconnect = time.Hour
	m.Run()
	defer m.Close()

	waitFor(t, "failure status", func() bool {
		return rec.find(func(s Status) bool { return s.Err != nil })
	})
	if rec.find(func(s Status) bool { return s.Connected }) {
		t.Error("non-multipart feed should never report connected")
	}
}

func TestMonitorCloseStops(t *testing.T) {
	var conns atomic.Int64
	srv := mjpegServer(t, &conns)
	m := NewMonitor(urlSource(srv.URL), nil)
	m.Run()
	waitFor(t, "connection", func() bool { return conns.Load() == 1 })

	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return")
	}
	if err := m.Restart(); err == nil {
		t.Error("Restart after Close should fail")
	}
}

func TestBoundaryOf(t *testing.T) {
	tests := []struct {
		ct      string
		want    string
		wantErr bool
	}{
		{"multipart/x-mixed-replace; boundary=frame", "frame", false},
		{"multipart/x-mixed-replace;boundary=\"abc\"", "abc", false},
		{"multipart/x-mixed-replace", "", true},
		{"image/jpeg", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := boundaryOf(tt.ct)
		if (err != nil) != tt.wantErr {
			t.Errorf("boundaryOf(%q) err = %v, wantErr %v", tt.ct, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("boundaryOf(%q) = %q, want %q", tt.ct, got, tt.want)
		}
	}
}
