// Package hubweb is the hub's status/debug HTTP surface: a JSON status
// endpoint over the kernel's task table and the calibration state, plus an
// SSE stream that pushes a JSON event each time a fresh gyro bias is
// available.
package hubweb

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"seoshub/internal/apps/fanctl"
	"seoshub/internal/apps/imusource"
	"seoshub/internal/kernel"
)

// TaskSource is satisfied by *kernel.Kernel.
type TaskSource interface {
	Tasks() []kernel.TaskSummary
}

// BiasSource is satisfied by *imusource.App.
type BiasSource interface {
	Snapshot() imusource.Snapshot
}

// FanSource is satisfied by *fanctl.App.
type FanSource interface {
	Snapshot() fanctl.Snapshot
}

// StatusPayload is the body of GET /api/status.
type StatusPayload struct {
	Service   string              `json:"service"`
	NowUTC    string              `json:"now_utc"`
	UptimeSec int64               `json:"uptime_sec"`
	Tasks     []kernel.TaskSummary `json:"tasks"`
	Bias      imusource.Snapshot  `json:"bias"`
	Fan       *fanctl.Snapshot    `json:"fan,omitempty"`
}

// Server builds the hub's http.Handler and owns the bias broadcaster.
type Server struct {
	kernel TaskSource
	bias   BiasSource
	fan    FanSource

	broadcaster *BiasBroadcaster
	startedAt   time.Time
}

// New builds a Server. fan may be nil when fanctl is disabled.
func New(k TaskSource, bias BiasSource, fan FanSource) *Server {
	return &Server{
		kernel:      k,
		bias:        bias,
		fan:         fan,
		broadcaster: NewBiasBroadcaster(),
		startedAt:   time.Now().UTC(),
	}
}

// Broadcaster returns the bias broadcaster, so imusource.Config.OnNewBias
// can be wired directly to Broadcaster().Publish.
func (s *Server) Broadcaster() *BiasBroadcaster { return s.broadcaster }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/bias/stream", s.handleBiasStream)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now().UTC()
	payload := StatusPayload{
		Service:   "seoshub",
		NowUTC:    now.Format(time.RFC3339Nano),
		UptimeSec: int64(now.Sub(s.startedAt).Seconds()),
		Tasks:     s.kernel.Tasks(),
		Bias:      s.bias.Snapshot(),
	}
	if s.fan != nil {
		fanSnap := s.fan.Snapshot()
		payload.Fan = &fanSnap
	}

	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func (s *Server) handleBiasStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := s.broadcaster.Subscribe(4)
	defer s.broadcaster.Unsubscribe(id)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(b)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// Serve runs the HTTP server until ctx is canceled.
func Serve(ctx context.Context, listenAddr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      0, // SSE connections are long-lived
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
