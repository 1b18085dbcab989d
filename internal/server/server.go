// Package server exposes the optimizer as an HTTP and JSON-RPC job service.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/gradopt/internal/config"
	apperrors "github.com/copyleftdev/gradopt/internal/errors"
	"github.com/copyleftdev/gradopt/internal/logging"
	"github.com/copyleftdev/gradopt/internal/optimization"
	"github.com/copyleftdev/gradopt/internal/optimization/descent"
	"github.com/copyleftdev/gradopt/internal/optimization/problems"
)

const component = "server"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server implements the HTTP and JSON-RPC server for the solve service.
// It manages solve jobs and provides endpoints to start, monitor, and cancel them.
type Server struct {
	cfg     *config.Config
	logger  Logger
	metrics *Metrics

	// worker slots, one token per running solve
	workers chan struct{}
	wg      sync.WaitGroup

	jobs   map[string]*Job
	jobsMu sync.RWMutex // Protects the jobs map and every job in it
}

// NewServer creates a new server instance with the given config, logger and metrics.
func NewServer(cfg *config.Config, logger Logger, metrics *Metrics) *Server {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	workers := cfg.Optimization.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		workers: make(chan struct{}, workers),
		jobs:    make(map[string]*Job),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/solve", s.handleSolve)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/solve/{id}", s.handleCancel)
		r.Get("/problems", s.handleProblems)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Close waits for queued and running jobs to finish, or until ctx is done.
// Solves still running when ctx ends are abandoned.
func (s *Server) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.jobsMu.RLock()
		pending := 0
		for _, job := range s.jobs {
			if !job.Status.Finished() {
				pending++
			}
		}
		s.jobsMu.RUnlock()
		return apperrors.Wrapf(ctx.Err(), "%d solve jobs still running", pending).
			WithComponent(component).
			WithOperation("Close")
	}
}

// ProblemInfo describes a registered test problem.
type ProblemInfo struct {
	Name             string `json:"name"`
	DefaultDimension int    `json:"default_dimension"`
}

// ProblemList is the catalogue returned by problems.list.
type ProblemList struct {
	Problems     []ProblemInfo `json:"problems"`
	Methods      []string      `json:"methods"`
	LineSearches []string      `json:"line_searches"`
}

func listProblems() ProblemList {
	names := problems.Names()
	list := ProblemList{
		Problems:     make([]ProblemInfo, 0, len(names)),
		Methods:      descent.Methods(),
		LineSearches: descent.LineSearches(),
	}
	for _, name := range names {
		n, _ := problems.DefaultDim(name)
		list.Problems = append(list.Problems, ProblemInfo{Name: name, DefaultDimension: n})
	}
	return list
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type jobParams struct {
	JobID string `json:"job_id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil, err)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID, nil)
		return
	}

	// Route to appropriate handler
	var result interface{}
	var err error

	switch request.Method {
	case "solve.start":
		var req SolveRequest
		if err = decodeParams(request.Method, request.Params, &req); err == nil {
			result, err = s.startJob(req)
		}
	case "solve.status":
		var p jobParams
		if err = decodeJobParams(request.Method, request.Params, &p); err == nil {
			result, err = s.jobStatus(p.JobID)
		}
	case "solve.cancel":
		var p jobParams
		if err = decodeJobParams(request.Method, request.Params, &p); err == nil {
			result, err = s.cancelJob(p.JobID)
		}
	case "problems.list":
		result = listProblems()
	default:
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID, nil)
		return
	}

	if err != nil {
		if optimization.IsInvalidArgument(err) {
			s.respondWithError(w, codeInvalidParams, "Invalid params", request.ID, err)
		} else {
			s.respondWithError(w, codeServerError, "Server error", request.ID, err)
		}
		return
	}

	data, err := json.Marshal(rpcResponse{JSONRPC: "2.0", ID: request.ID, Result: result})
	if err != nil {
		s.respondWithError(w, codeServerError, "Server error", request.ID, fmt.Errorf("encode result: %w", err))
		return
	}
	writeBody(w, http.StatusOK, data)
}

// decodeParams accepts params either as an object or as an array holding one object.
func decodeParams(method string, raw json.RawMessage, dst interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return optimization.InvalidArgument(component, method, "missing required parameters")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
			return optimization.InvalidArgument(component, method, "invalid parameter format, expected object")
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return optimization.InvalidArgument(component, method, "invalid parameters: %v", err)
	}
	return nil
}

func decodeJobParams(method string, raw json.RawMessage, p *jobParams) error {
	if err := decodeParams(method, raw, p); err != nil {
		return err
	}
	if p.JobID == "" {
		return optimization.InvalidArgument(component, method, "job_id is required")
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}, cause error) {
	fields := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	e := &rpcError{Code: code, Message: message}
	if cause != nil {
		fields["error"] = cause.Error()
		e.Data = cause.Error()
	}
	s.logger.Warn("Request error", fields)

	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Error: e})
}

// handleSolve handles POST /api/v1/solve
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	job, err := s.startJob(req)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// handleStatus handles GET /api/v1/status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleCancel handles DELETE /api/v1/solve/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	job, err := s.cancelJob(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleProblems handles GET /api/v1/problems
func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listProblems())
}

func statusOf(err error) int {
	switch {
	case optimization.IsInvalidArgument(err):
		return http.StatusBadRequest
	case apperrors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, ErrJobFinished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON encodes v before sending the header, so a value that cannot be
// encoded turns into a 500 error instead of an empty response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{"error": fmt.Sprintf("encode response: %v", err)})
	}
	writeBody(w, status, data)
}

func writeBody(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}
