package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"simcapture-go/internal/config"
	"simcapture-go/internal/recording"
)

// Recorder is the recording control surface exposed over HTTP.
type Recorder interface {
	Start(dir string) error
	Stop() error
	Status() recording.Status
}

type Server struct {
	cfg      config.AppConfig
	ws       http.Handler
	recorder Recorder
	statusFn func() map[string]any
}

func New(cfg config.AppConfig, ws http.Handler, recorder Recorder, statusFn func() map[string]any) *Server {
	return &Server{cfg: cfg, ws: ws, recorder: recorder, statusFn: statusFn}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.ws != nil {
		mux.Handle("/ws", s.ws)
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/record/start", s.handleRecordStart)
	mux.HandleFunc("/record/stop", s.handleRecordStop)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"port":                     s.cfg.Port,
		"transport":                s.cfg.Transport,
		"output_dir":               s.cfg.OutputDir,
		"pixel_width":              s.cfg.PixelWidth,
		"pixel_height":             s.cfg.PixelHeight,
		"field_of_view":            s.cfg.FieldOfView,
		"resolve_before_capture":   s.cfg.ResolveBeforeCapture,
		"suppress_image_on_manual": s.cfg.SuppressImageOnManual,
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{}
	if s.statusFn != nil {
		payload = s.statusFn()
	}
	if s.recorder != nil {
		payload["recording"] = s.recorder.Status()
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleRecordStart starts a session in ?dir=, or the configured output
// directory.
func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "POST required"})
		return
	}
	if s.recorder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "recording unavailable"})
		return
	}
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		dir = s.cfg.OutputDir
	}
	if err := s.recorder.Start(dir); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, recording.ErrAlreadyRecording) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.recorder.Status())
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "POST required"})
		return
	}
	if s.recorder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "recording unavailable"})
		return
	}
	if err := s.recorder.Stop(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.recorder.Status())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
