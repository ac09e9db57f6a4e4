// Package api exposes the supervisor state over HTTP.
//
// The API is read only except for stop, which has the same semantics as the stop
// command. It never writes the checkpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/slok/imagegen/internal/app/history"
	"github.com/slok/imagegen/internal/app/logs"
	"github.com/slok/imagegen/internal/app/status"
	"github.com/slok/imagegen/internal/app/stop"
	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/printer"
)

// StatusService returns the supervisor status.
type StatusService interface {
	Run(ctx context.Context, req status.Request) (*status.Result, error)
}

// LogsService returns the supervisor log lines.
type LogsService interface {
	Run(ctx context.Context, req logs.Request) ([]string, error)
}

// StopService stops the supervisor.
type StopService interface {
	Run(ctx context.Context, req stop.Request) (*stop.Result, error)
}

// HistoryService returns the archived sessions.
type HistoryService interface {
	Run(ctx context.Context, req history.Request) ([]model.ArchivedSession, error)
}

// HandlerConfig is the configuration for the API handler.
type HandlerConfig struct {
	Status StatusService
	Logs   LogsService
	Stop   StopService
	// History is optional, the history routes are not registered without it.
	History HistoryService
	Logger  log.Logger
}

func (c *HandlerConfig) defaults() error {
	if c.Status == nil {
		return fmt.Errorf("status service is required")
	}

	if c.Logs == nil {
		return fmt.Errorf("logs service is required")
	}

	if c.Stop == nil {
		return fmt.Errorf("stop service is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "api.Handler"})

	return nil
}

type handler struct {
	status  StatusService
	logs    LogsService
	stop    StopService
	history HistoryService
	logger  log.Logger
}

// NewHandler returns the API HTTP handler.
func NewHandler(cfg HandlerConfig) (http.Handler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	h := handler{
		status:  cfg.Status,
		logs:    cfg.Logs,
		stop:    cfg.Stop,
		history: cfg.History,
		logger:  cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/status", h.getStatus)
	r.Get("/status/results", h.getResults)
	r.Get("/logs", h.getLogs)
	r.Post("/stop", h.postStop)

	if h.history != nil {
		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.listHistory)
			r.Get("/{id}", h.getHistory)
		})
	}

	return r, nil
}

func (h handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h handler) getStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.status.Run(r.Context(), status.Request{})
	if err != nil {
		h.writeError(w, err)
		return
	}

	st := printer.Status{Session: res.Session}
	if res.Supervisor != nil {
		st.Lock = &res.Supervisor.Lock
		st.Alive = res.Supervisor.Alive
	}

	w.Header().Set("Content-Type", "application/json")
	_ = printer.NewJSONPrinter(w).PrintStatus(st)
}

func (h handler) getResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.status.Run(r.Context(), status.Request{})
	if err != nil {
		h.writeError(w, err)
		return
	}

	if res.Session == nil {
		h.writeError(w, fmt.Errorf("no checkpointed session: %w", model.ErrNotFound))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = printer.NewJSONPrinter(w).PrintResults(*res.Session)
}

func (h handler) getLogs(w http.ResponseWriter, r *http.Request) {
	lines := 0
	if v := r.URL.Query().Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, fmt.Errorf("invalid lines %q: %w", v, model.ErrNotValid))
			return
		}
		lines = n
	}

	res, err := h.logs.Run(r.Context(), logs.Request{Lines: lines})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = printer.NewJSONPrinter(w).PrintLogs(res)
}

type stopResponse struct {
	PID       int  `json:"pid"`
	Confirmed bool `json:"confirmed"`
}

func (h handler) postStop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := stop.Request{SessionID: q.Get("session")}

	if v := q.Get("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			h.writeError(w, fmt.Errorf("invalid wait %q: %w", v, model.ErrNotValid))
			return
		}
		req.Wait = d
	}

	if v := q.Get("force"); v != "" {
		f, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, fmt.Errorf("invalid force %q: %w", v, model.ErrNotValid))
			return
		}
		req.Force = f
	}

	res, err := h.stop.Run(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stopResponse{PID: res.PID, Confirmed: res.Confirmed})
}

func (h handler) listHistory(w http.ResponseWriter, r *http.Request) {
	res, err := h.history.Run(r.Context(), history.Request{})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = printer.NewJSONPrinter(w).PrintHistory(res)
}

func (h handler) getHistory(w http.ResponseWriter, r *http.Request) {
	res, err := h.history.Run(r.Context(), history.Request{ID: chi.URLParam(r, "id")})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = printer.NewJSONPrinter(w).PrintHistory(res)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h handler) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotValid):
		code = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrNoActiveSession):
		code = http.StatusNotFound
	case errors.Is(err, model.ErrNotRunning), errors.Is(err, model.ErrStopNotConfirmed):
		code = http.StatusConflict
	}

	if code == http.StatusInternalServerError {
		h.logger.Errorf("API request failed: %v", err)
	}

	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.WithValues(log.Kv{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"duration-ms": time.Since(start).Milliseconds(),
				"request-id":  middleware.GetReqID(r.Context()),
			}).Debugf("HTTP request handled")
		})
	}
}
