package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"simcapture-go/internal/config"
	"simcapture-go/internal/recording"
)

type fakeRecorder struct {
	dir    string
	active bool
}

func (f *fakeRecorder) Start(dir string) error {
	if f.active {
		return recording.ErrAlreadyRecording
	}
	f.active = true
	f.dir = dir
	return nil
}

func (f *fakeRecorder) Stop() error {
	f.active = false
	return nil
}

func (f *fakeRecorder) Status() recording.Status {
	return recording.Status{Recording: f.active, Dir: f.dir}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHandleConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 9999
	cfg.SuppressImageOnManual = true
	srv := New(cfg, nil, nil, nil)

	req := httptest.NewRequest("GET", "/config", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	payload := decode(t, rec)
	if payload["port"].(float64) != 9999 {
		t.Fatalf("unexpected port: %v", payload["port"])
	}
	if payload["pixel_width"].(float64) != 320 {
		t.Fatalf("unexpected pixel_width: %v", payload["pixel_width"])
	}
	if payload["suppress_image_on_manual"] != true {
		t.Fatalf("unexpected suppress flag: %v", payload["suppress_image_on_manual"])
	}
}

func TestHandleStatus(t *testing.T) {
	recorder := &fakeRecorder{}
	srv := New(config.Default(), nil, recorder, func() map[string]any {
		return map[string]any{"ws_clients": 2}
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
	payload := decode(t, rec)
	if payload["ws_clients"].(float64) != 2 {
		t.Fatalf("unexpected ws_clients: %v", payload["ws_clients"])
	}
	rs, ok := payload["recording"].(map[string]any)
	if !ok || rs["recording"] != false {
		t.Fatalf("unexpected recording status: %v", payload["recording"])
	}
}

func TestRecordStartStop(t *testing.T) {
	recorder := &fakeRecorder{}
	cfg := config.Default()
	cfg.OutputDir = "dataset"
	h := New(cfg, nil, recorder, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/record/start", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/record/start", nil))
	if rec.Code != http.StatusOK || recorder.dir != "dataset" {
		t.Fatalf("start failed: %d dir=%q", rec.Code, recorder.dir)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/record/start?dir=other", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second start, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/record/stop", nil))
	if rec.Code != http.StatusOK || recorder.active {
		t.Fatalf("stop failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/record/start?dir=other", nil))
	if rec.Code != http.StatusOK || recorder.dir != "other" {
		t.Fatalf("start with dir failed: %d dir=%q", rec.Code, recorder.dir)
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	New(config.Default(), nil, nil, nil).Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}
