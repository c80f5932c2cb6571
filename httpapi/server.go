// Package httpapi exposes a node's search and storage operations over a
// small JSON HTTP interface, for operators and external clients.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/encodeous/sift/bucket"
	"github.com/encodeous/sift/network"
	"github.com/encodeous/sift/objects"
)

// Backend is the node surface the API serves. *core.Node implements it.
type Backend interface {
	Id() network.NodeId
	RangeSearch(ctx context.Context, query *objects.Object, radius float32, timeout time.Duration) (*objects.SearchResult, error)
	KNNSearch(ctx context.Context, query *objects.Object, k int, timeout time.Duration) (*objects.SearchResult, error)
	Insert(ctx context.Context, target network.NodeId, o *objects.Object) error
	GetObject(ctx context.Context, target network.NodeId, locator string) (*objects.Object, error)
	DeleteObject(ctx context.Context, target network.NodeId, locator string) error
	Stats() map[string]int64
}

const defaultQueryTimeout = 30 * time.Second

type Server struct {
	backend Backend
	log     *slog.Logger
	srv     *http.Server
}

func NewServer(backend Backend, bind string, log *slog.Logger) *Server {
	s := &Server{backend: backend, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /search/range", s.handleRange)
	mux.HandleFunc("GET /search/knn", s.handleKNN)
	mux.HandleFunc("GET /objects/{locator}", s.handleGet)
	mux.HandleFunc("POST /objects", s.handleInsert)
	mux.HandleFunc("DELETE /objects/{locator}", s.handleDelete)
	mux.HandleFunc("GET /stats", s.handleStats)

	s.srv = &http.Server{
		Addr:              bind,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve blocks until the listener fails or Close is called.
func (s *Server) Serve() error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("failed to write response", "err", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

// queryVector parses the mandatory ?q= vector parameter.
func (s *Server) queryVector(w http.ResponseWriter, r *http.Request) (*objects.Object, bool) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("missing query parameter q"))
		return nil, false
	}
	vec, err := objects.ParseVector(q)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	return objects.New("", vec), true
}

func queryTimeout(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		return defaultQueryTimeout, nil
	}
	return time.ParseDuration(raw)
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	query, ok := s.queryVector(w, r)
	if !ok {
		return
	}
	radius, err := strconv.ParseFloat(r.URL.Query().Get("radius"), 32)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("missing or invalid radius"))
		return
	}
	timeout, err := queryTimeout(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.backend.RangeSearch(r.Context(), query, float32(radius), timeout)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleKNN(w http.ResponseWriter, r *http.Request) {
	query, ok := s.queryVector(w, r)
	if !ok {
		return
	}
	k, err := strconv.Atoi(r.URL.Query().Get("k"))
	if err != nil || k <= 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("missing or invalid k"))
		return
	}
	timeout, err := queryTimeout(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.backend.KNNSearch(r.Context(), query, k, timeout)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type insertBody struct {
	Locator string         `json:"locator"`
	Data    []float32      `json:"data"`
	Node    network.NodeId `json:"node,omitempty"`
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var body insertBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body.Data) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("empty vector"))
		return
	}
	o := objects.New(body.Locator, body.Data)
	if err := s.backend.Insert(r.Context(), body.Node, o); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bucket.ErrDuplicate) || errors.Is(err, bucket.ErrCapacity) {
			status = http.StatusConflict
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	o, err := s.backend.GetObject(r.Context(), network.NodeId(r.URL.Query().Get("node")), r.PathValue("locator"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bucket.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.backend.DeleteObject(r.Context(), network.NodeId(r.URL.Query().Get("node")), r.PathValue("locator"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bucket.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"node":  s.backend.Id(),
		"stats": s.backend.Stats(),
	})
}
