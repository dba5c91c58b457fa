package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/BrandonDHaskell/readings/internal/readings/service"
	"github.com/BrandonDHaskell/readings/internal/readings/store"
	"github.com/BrandonDHaskell/readings/internal/readings/types"
	"github.com/BrandonDHaskell/readings/internal/validation"
)

// DefaultMaxBodyBytes caps request bodies at 1 MiB.
const DefaultMaxBodyBytes = 1 << 20

type Dependencies struct {
	Logger         zerolog.Logger
	Addr           string
	MaxBodyBytes   int64
	ReadingService *service.ReadingService
}

type Server struct {
	httpServer     *http.Server
	logger         zerolog.Logger
	maxBodyBytes   int64
	readingService *service.ReadingService
}

func NewServer(d Dependencies) *Server {
	s := &Server{
		logger:         d.Logger,
		maxBodyBytes:   d.MaxBodyBytes,
		readingService: d.ReadingService,
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog(d.Logger))
	r.Use(recoverer(d.Logger))

	r.Post("/readings", s.handleIngest)
	r.Get("/devices/{id}/latest", s.handleLatest)
	r.Get("/devices/{id}/cumulative", s.handleCumulative)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req types.BatchPayload
	if err := s.decodeBatch(w, r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		var schemaErr *validation.SchemaError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, r, http.StatusRequestEntityTooLarge, "Payload too large", nil)
		case errors.As(err, &schemaErr):
			writeError(w, r, http.StatusBadRequest, "Invalid payload", schemaErr.Fields)
		case errors.Is(err, errMalformedBody):
			writeError(w, r, http.StatusBadRequest, "Invalid JSON", nil)
		default:
			s.logger.Error().Err(err).Msg("read readings body")
			writeError(w, r, http.StatusInternalServerError, "Unexpected error", nil)
		}
		return
	}

	resp, err := s.readingService.Ingest(r.Context(), &req)
	if err != nil {
		var schemaErr *validation.SchemaError
		switch {
		case errors.As(err, &schemaErr):
			writeError(w, r, http.StatusBadRequest, "Invalid payload", schemaErr.Fields)
		case errors.Is(err, store.ErrDuplicateTimestamp):
			writeError(w, r, http.StatusBadRequest, "Duplicate timestamp in payload", []validation.FieldError{
				{Path: "readings", Message: "Duplicate timestamp in payload"},
			})
		default:
			s.logger.Error().Err(err).Msg("ingest readings")
			writeError(w, r, http.StatusInternalServerError, "Unexpected error", nil)
		}
		return
	}

	writeResponse(w, r, http.StatusCreated, resp)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	resp, err := s.readingService.Latest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.queryError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, resp)
}

func (s *Server) handleCumulative(w http.ResponseWriter, r *http.Request) {
	resp, err := s.readingService.Cumulative(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.queryError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, resp)
}

func (s *Server) queryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrDeviceNotFound) {
		writeError(w, r, http.StatusNotFound, "Device not found", nil)
		return
	}
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("device query")
	writeError(w, r, http.StatusInternalServerError, "Unexpected error", nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
