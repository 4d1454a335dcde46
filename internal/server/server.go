package server

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"

	"github.com/copyleftdev/landscape/internal/config"
	apperrors "github.com/copyleftdev/landscape/internal/errors"
	"github.com/copyleftdev/landscape/internal/logging"
	"github.com/copyleftdev/landscape/internal/metrics"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server implements the HTTP and JSON-RPC driver over search sessions.
// Each session owns a roster of algorithms; clients advance it frame by
// frame or let the server play it on a timer.
type Server struct {
	cfg     *config.Config
	logger  Logger
	metrics *metrics.Collector

	sessions   map[string]*sessionState
	sessionsMu sync.RWMutex // Protects the sessions map

	// sampled landscapes keyed by function and grid shape
	grids *cache.Cache
}

// NewServer creates a new server instance with the given config, logger and
// metrics collector. collector may be nil.
func NewServer(cfg *config.Config, logger Logger, collector *metrics.Collector) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  collector,
		sessions: make(map[string]*sessionState),
		grids:    cache.New(gridCacheTTL, 2*gridCacheTTL),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/functions", s.handleFunctions)
		r.Get("/functions/{name}/grid", s.handleGrid)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Get("/", s.handleListSessions)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleSessionInfo)
				r.Delete("/", s.handleCloseSession)
				r.Post("/frames", s.handleFrames)
				r.Post("/select", s.handleSelect)
				r.Post("/steps", s.handleSteps)
				r.Post("/forever", s.handleForever)
				r.Post("/pause", s.handlePause)
				r.Post("/play", s.handlePlay)
				r.Delete("/play", s.handleStop)

				r.Get("/algorithms", s.handleAlgorithms)
				r.Get("/algorithms/{index}", s.handleAlgorithm)
				r.Post("/algorithms/{index}/restart", s.handleRestart)
				r.Get("/algorithms/{index}/probe", s.handleProbe)
			})
		})
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Close stops every autoplay loop and closes every session.
func (s *Server) Close() error {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	for id, st := range s.sessions {
		st.stop()
		st.Close()
		delete(s.sessions, id)
	}
	s.grids.Flush()
	return nil
}

// respondJSON writes v with the given status code.
func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

// respondError writes err as {"error": ...} with the status its kind maps to.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", map[string]interface{}{"error": err.Error()})
	}
	s.respondJSON(w, status, map[string]interface{}{"error": err.Error()})
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || apperrors.Is(err, io.EOF) {
		return nil
	}
	return apperrors.Wrap(err, "invalid request body").WithKind(apperrors.KindInvalid)
}
