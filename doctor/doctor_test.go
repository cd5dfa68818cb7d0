package doctor

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signnet/backend"
)

func newServer(t *testing.T, feedOK bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/get_prediction", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"static","text":"A","confidence":0.91}`))
	})
	mux.HandleFunc("/set_mode", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","mode":"` + r.URL.Query().Get("mode") + `"}`))
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reply":"hi there"}`))
	})
	mux.HandleFunc("/video_feed", func(w http.ResponseWriter, r *http.Request) {
		if !feedOK {
			http.Error(w, "no camera", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n\xff\xd8\xff\xd9\r\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunAllPass(t *testing.T) {
	srv := newServer(t, true)
	be, err := backend.New(srv.URL, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	code := Run(context.Background(), be, srv.URL, time.Second, &out)
	if code != 0 {
		t.Fatalf("exit code = %d, output:\n%s", code, out.String())
	}
	for _, want := range []string{"[1/4] prediction", "[2/4] set mode", "[3/4] chat", "[4/4] video feed", "All checks passed!"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "FAIL") {
		t.Errorf("unexpected FAIL:\n%s", out.String())
	}
}

func TestRunFeedFailureStillRunsAll(t *testing.T) {
	srv := newServer(t, false)
	be, err := backend.New(srv.URL, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if code := Run(context.Background(), be, srv.URL, time.Second, &out); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if n := strings.Count(out.String(), "PASS"); n != 3 {
		t.Errorf("PASS count = %d, want 3:\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "FAIL") {
		t.Errorf("missing FAIL line:\n%s", out.String())
	}
}

func TestRunFakeSkipsFeed(t *testing.T) {
	fake := backend.NewFake()
	var out bytes.Buffer
	if code := Run(context.Background(), fake, "fake", time.Second, &out); code != 0 {
		t.Fatalf("exit code = %d:\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "SKIP") {
		t.Errorf("feed check should be skipped:\n%s", out.String())
	}
}

func TestRunReportsBackendErrors(t *testing.T) {
	fake := backend.NewFake()
	fake.FailPredictions(errors.New("connection refused"))
	fake.FailChat(errors.New("model not loaded"))

	var out bytes.Buffer
	if code := Run(context.Background(), fake, "fake", time.Second, &out); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	for _, want := range []string{"FAIL: connection refused", "FAIL: model not loaded"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
