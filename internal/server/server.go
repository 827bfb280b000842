package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/screen-ocr/internal/config"
	"github.com/GriffinCanCode/screen-ocr/internal/delivery"
	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/orchestrator"
	"github.com/GriffinCanCode/screen-ocr/internal/preprocess"
	"github.com/GriffinCanCode/screen-ocr/internal/recognition"
	"github.com/GriffinCanCode/screen-ocr/internal/screen"
	"github.com/GriffinCanCode/screen-ocr/internal/trace"
)

// Controller is the capture control surface; orchestrator.Manager implements it.
type Controller interface {
	StartCapture(ctx context.Context, req orchestrator.CaptureRequest) (string, error)
	StopCapture() error
	Status() orchestrator.Status
	Results(n int) []recognition.Result
	OnResult(fn delivery.Consumer) (unregister func())
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

// StartRequest is the body of POST /api/capture/start and of the
// "start_capture" WebSocket message. Absent fields use configured values.
type StartRequest struct {
	Type       string             `json:"type,omitempty"`
	Region     *preprocess.Region `json:"region,omitempty"`
	IntervalMs int                `json:"interval_ms,omitempty"`
	ResultCode *int               `json:"result_code,omitempty"`
	Payload    []byte             `json:"payload,omitempty"` // base64 in JSON
}

type StatusMessage struct {
	Type      string `json:"type,omitempty"`
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type,omitempty"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id,omitempty"`
}

type ResultMessage struct {
	Type string `json:"type"`
	recognition.Result
}

type ResultsResponse struct {
	Results []recognition.Result `json:"results"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// outbound is one queued WebSocket write.
type outbound struct {
	kind websocket.MessageType
	data []byte
}

// client is one WebSocket consumer. A single writer goroutine keeps events
// in delivery order.
type client struct {
	conn    *websocket.Conn
	send    chan outbound
	limiter rateLimiter
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	ctrl  Controller
	grant screen.Grant

	mu         sync.Mutex
	clients    map[*client]struct{}
	unregister func()
}

// New creates a server. The configured grant is used for start requests
// that carry none.
func New(ctrl Controller, cfg *config.Config) *Server {
	s := &Server{ctrl: ctrl, clients: make(map[*client]struct{})}
	if cfg != nil {
		if g, err := cfg.Grant(); err == nil {
			s.grant = g
		} else {
			slog.Warn("ignoring configured grant", "error", err)
		}
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Delivery consumers
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Control surface
	mux.HandleFunc("POST /api/capture/start", s.handleStart)
	mux.HandleFunc("POST /api/capture/stop", s.handleStop)
	mux.HandleFunc("GET /api/capture", s.handleStatus)
	mux.HandleFunc("GET /api/results", s.handleResults)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// captureRequest fills in the configured grant.
func (s *Server) captureRequest(req StartRequest) orchestrator.CaptureRequest {
	out := orchestrator.CaptureRequest{IntervalMs: req.IntervalMs, Grant: s.grant}
	if req.Region != nil {
		out.Region = *req.Region
	}
	if req.ResultCode != nil {
		out.Grant = screen.Grant{ResultCode: *req.ResultCode, Payload: req.Payload}
	} else if req.Payload != nil {
		out.Grant.Payload = req.Payload
	}
	return out
}

// httpStatus maps an error to a response code.
func httpStatus(err error) int {
	switch {
	case apperrors.IsConfiguration(err):
		return http.StatusBadRequest
	case apperrors.IsCode(err, apperrors.CodeAlreadyActive):
		return http.StatusConflict
	case apperrors.IsCode(err, apperrors.CodeBusy):
		return http.StatusServiceUnavailable
	case apperrors.IsCode(err, apperrors.CodeInvalidGrant),
		apperrors.IsCode(err, apperrors.CodeResourceAllocationFailed),
		apperrors.IsCode(err, apperrors.CodeResourceReleaseFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(ctx context.Context, err error) ErrorMessage {
	msg := ErrorMessage{Error: err.Error(), Code: string(apperrors.CodeOf(err))}
	if tc, ok := trace.FromContext(ctx); ok {
		msg.TraceID = tc.TraceID
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := trace.Logger(ctx)

	var req StartRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		err = apperrors.Wrap(err, apperrors.CodeConfigInvalid, "invalid request body")
		writeJSON(w, http.StatusBadRequest, errorMessage(ctx, err))
		return
	}

	id, err := s.ctrl.StartCapture(ctx, s.captureRequest(req))
	if err != nil {
		log.Warn("start capture rejected", "error", err)
		writeJSON(w, httpStatus(err), errorMessage(ctx, err))
		return
	}
	writeJSON(w, http.StatusOK, StatusMessage{Status: "capture_started", SessionID: id})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.StopCapture(); err != nil {
		trace.Logger(r.Context()).Error("stop capture failed", "error", err)
		writeJSON(w, httpStatus(err), errorMessage(r.Context(), err))
		return
	}
	writeJSON(w, http.StatusOK, StatusMessage{Status: "capture_stopped"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	limit := DefaultResultsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			err := apperrors.Newf(apperrors.CodeConfigInvalid, "invalid limit %q", v)
			writeJSON(w, http.StatusBadRequest, errorMessage(r.Context(), err))
			return
		}
		limit = min(n, MaxResultsLimit)
	}
	results := s.ctrl.Results(limit)
	if results == nil {
		results = []recognition.Result{}
	}
	writeJSON(w, http.StatusOK, ResultsResponse{Results: results})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := trace.Logger(ctx)

	c := &client{conn: conn, send: make(chan outbound, ClientSendBuffer)}
	s.attach(c)
	defer s.detach(c)
	go s.writeLoop(ctx, c)

	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !c.limiter.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			s.reply(c, ErrorMessage{Type: "error", Error: "rate limit exceeded", Code: string(apperrors.CodeBusy)})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "start_capture":
			var req StartRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			s.handleStartMessage(ctx, c, req)
		case "stop_capture":
			if err := s.ctrl.StopCapture(); err != nil {
				s.reply(c, errorReply(ctx, err))
				continue
			}
			s.reply(c, StatusMessage{Type: "capture_stopped", Status: "capture_stopped"})
		}
	}
}

func (s *Server) handleStartMessage(ctx context.Context, c *client, req StartRequest) {
	ctx, span := trace.StartSpan(ctx, "ws_start_capture")
	defer span.End()

	id, err := s.ctrl.StartCapture(ctx, s.captureRequest(req))
	if err != nil {
		span.SetAttr("error", err.Error())
		s.reply(c, errorReply(ctx, err))
		return
	}
	s.reply(c, StatusMessage{Type: "capture_started", Status: "capture_started", SessionID: id})
}

func errorReply(ctx context.Context, err error) ErrorMessage {
	msg := errorMessage(ctx, err)
	msg.Type = "error"
	return msg
}

// attach adds a consumer connection. The first one registers the server as
// the delivery consumer.
func (s *Server) attach(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
	if s.unregister == nil {
		s.unregister = s.ctrl.OnResult(s.broadcast)
	}
}

// detach removes a connection. The last one unregisters the consumer so
// results are dropped rather than queued.
func (s *Server) detach(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
	if len(s.clients) == 0 && s.unregister != nil {
		s.unregister()
		s.unregister = nil
	}
}

// Clients returns the number of connected consumers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// broadcast runs on the delivery goroutine and never blocks it.
func (s *Server) broadcast(ev delivery.Event) {
	var out outbound
	if ev.IsFrame() {
		out = outbound{kind: websocket.MessageBinary, data: ev.Frame}
	} else {
		data, err := json.Marshal(ResultMessage{Type: "result", Result: *ev.Result})
		if err != nil {
			slog.Error("encode result", "error", err)
			return
		}
		out = outbound{kind: websocket.MessageText, data: data}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- out:
		default:
			slog.Warn("websocket consumer too slow, dropping event")
		}
	}
}

func (s *Server) reply(c *client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- outbound{kind: websocket.MessageText, data: data}:
	default:
	}
}

func (s *Server) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, WriteTimeout)
			err := c.conn.Write(wctx, out.kind, out.data)
			cancel()
			if err != nil {
				slog.Debug("websocket write error", "error", err)
				return
			}
		}
	}
}

// Close unregisters the delivery consumer.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unregister != nil {
		s.unregister()
		s.unregister = nil
	}
}
