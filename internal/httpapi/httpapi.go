// Package httpapi serves the positional call surface over HTTP.
//
//	POST /v1/call      {"caller": "ADDR", "call": ["mint_cert", "N1", "R1", "T", "M"]}
//	GET  /v1/counters
//	GET  /v1/journal?after=0&limit=100
//	GET  /healthz
//	GET  /metrics
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/campusledger/internal/dispatch"
	"github.com/roach88/campusledger/internal/failure"
	"github.com/roach88/campusledger/internal/ledger"
)

// maxBodyBytes bounds a /v1/call request body.
const maxBodyBytes = 64 << 10

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the ledger API.
type Handler struct {
	engine     *ledger.Engine
	dispatcher *dispatch.Dispatcher
	pinger     Pinger
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

// New creates a Handler. gatherer may be nil to disable /metrics.
func New(e *ledger.Engine, pinger Pinger, gatherer prometheus.Gatherer, logger *slog.Logger) *Handler {
	return &Handler{
		engine:     e,
		dispatcher: dispatch.New(e),
		pinger:     pinger,
		gatherer:   gatherer,
		logger:     logger,
	}
}

// Router returns the mounted routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HandleHealth)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/call", h.HandleCall)
		r.Get("/counters", h.HandleCounters)
		r.Get("/journal", h.HandleJournal)
	})
	return r
}

// CallRequest is the body of POST /v1/call.
type CallRequest struct {
	Caller string   `json:"caller"`
	Call   []string `json:"call"`
}

// Response is the envelope of every /v1 response.
type Response struct {
	Status string     `json:"status"`
	Op     string     `json:"op,omitempty"`
	Record any        `json:"record,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a rejection.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleCall runs one positional call.
func (h *Handler) HandleCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteError(w, failure.Format("invalid request body: %v", err))
		return
	}

	res, err := h.dispatcher.Call(r.Context(), req.Caller, req.Call)
	if err != nil {
		h.logFailure(r, err)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, Response{Status: "ok", Op: res.Op, Record: res.Record})
}

// HandleCounters returns every counter.
func (h *Handler) HandleCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.engine.Counters(r.Context())
	if err != nil {
		h.logFailure(r, err)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, Response{Status: "ok", Op: "counters", Record: counters})
}

// HandleJournal returns committed mutations after ?after=, at most ?limit=.
func (h *Handler) HandleJournal(w http.ResponseWriter, r *http.Request) {
	after, err := queryInt(r, "after")
	if err != nil {
		WriteError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteError(w, err)
		return
	}

	entries, err := h.engine.Journal(r.Context(), after, int(limit))
	if err != nil {
		h.logFailure(r, err)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, Response{Status: "ok", Op: "journal", Record: entries})
}

// HandleHealth reports whether the store is reachable.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.Ping(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) logFailure(r *http.Request, err error) {
	if failure.CodeOf(err) != "" {
		return
	}
	h.logger.ErrorContext(r.Context(), "request failed",
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err)
}

func queryInt(r *http.Request, name string) (int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, failure.Format("%s must be a non-negative integer", name)
	}
	return n, nil
}

// WriteJSON writes response with status.
func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates err into a status code and error envelope.
func WriteError(w http.ResponseWriter, err error) {
	var fe *failure.Error
	if errors.As(err, &fe) {
		WriteJSON(w, StatusOf(fe.Code), Response{
			Status: "error",
			Op:     fe.Op,
			Error:  &ErrorBody{Code: string(fe.Code), Message: fe.Error()},
		})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, Response{
		Status: "error",
		Error:  &ErrorBody{Code: "INTERNAL", Message: "internal error"},
	})
}

// StatusOf maps a rejection code to an HTTP status.
func StatusOf(code failure.Code) int {
	switch code {
	case failure.CodeUnauthorized:
		return http.StatusUnauthorized
	case failure.CodeNotFound:
		return http.StatusNotFound
	case failure.CodeFormat, failure.CodeShapeMismatch:
		return http.StatusBadRequest
	case failure.CodeDuplicate, failure.CodeInvalidTransition,
		failure.CodeNotInitialized, failure.CodeAlreadyInitialized:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
