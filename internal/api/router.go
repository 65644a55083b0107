package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/meur/cinerank/internal/auth"
	"github.com/meur/cinerank/internal/service"
	"github.com/meur/cinerank/internal/shared"
)

// Server holds the HTTP server dependencies
type Server struct {
	svc     *service.Service
	gate    auth.Gate
	cfg     shared.ServerConfig
	logger  *log.Logger
	limiter *writeLimiter
	router  chi.Router
}

// New creates a new API server
func New(svc *service.Service, gate auth.Gate, cfg shared.ServerConfig, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	s := &Server{
		svc:     svc,
		gate:    gate,
		cfg:     cfg,
		logger:  logger,
		limiter: newWriteLimiter(cfg.WriteRate, cfg.WriteBurst),
		router:  chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Router exposes the underlying router so callers can mount extra routes,
// such as a static file server.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(auth.Middleware(s.gate))
	s.router.Use(s.limitWrites)
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		// Lists
		r.Get("/lists/mine", s.handleMyLists)
		r.Post("/lists", s.handleCreateList)
		r.Get("/lists/{ref}", s.handleGetList)
		r.Put("/lists/{ref}", s.handleRenameList)
		r.Delete("/lists/{ref}", s.handleDeleteList)

		// Items
		r.Post("/lists/{ref}/items", s.handleAddItem)
		r.Put("/lists/{ref}/items/{itemID}", s.handleUpdateItem)
		r.Delete("/lists/{ref}/items/{itemID}", s.handleRemoveItem)
		r.Put("/lists/{ref}/reorder", s.handleReorder)

		// Catalog
		r.Get("/movies/{movieID}", s.handleGetMovie)
	})

	// Health check
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// --- Middleware ---

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// limitWrites throttles every request that can change state, per client.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			if !s.limiter.allow(clientKey(r), time.Now()) {
				respondError(w, http.StatusTooManyRequests, "too many writes, slow down")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// --- Response helpers ---

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure maps an error from the service onto a status code.
// Persistence failures are reported as retryable; anything unclassified is
// logged and hidden behind a generic message.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, err.Error())
	case shared.IsAuthorization(err):
		respondError(w, http.StatusForbidden, err.Error())
	case shared.IsNotFound(err):
		respondError(w, http.StatusNotFound, err.Error())
	case shared.IsPersistence(err):
		s.logger.Warn("persistence failure", "path", r.URL.Path, "err", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":     "could not save changes, try again",
			"retryable": true,
		})
	default:
		s.logger.Error("unhandled error", "path", r.URL.Path, "err", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
