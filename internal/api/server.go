// Package api exposes the resolution and series engine over HTTP and
// websocket for the dashboard layer. All core logic lives in the service
// package; handlers only decode parameters and map errors to status codes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"endex-futures-lab/internal/domain"
	"endex-futures-lab/internal/observability"
	"endex-futures-lab/internal/reference"
	"endex-futures-lab/internal/resolver"
	"endex-futures-lab/internal/series"
	"endex-futures-lab/internal/service"
)

const defaultWindowDays = 30

// Server serves the query API over a service facade.
type Server struct {
	svc    *service.Service
	hub    *Hub
	logger zerolog.Logger
}

// NewServer creates an API server. The hub may be nil when websocket
// notifications are not wanted.
func NewServer(svc *service.Service, hub *Hub, logger zerolog.Logger) *Server {
	return &Server{
		svc:    svc,
		hub:    hub,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Routes builds the HTTP mux for the server.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/resolve", s.handleResolve)
	mux.HandleFunc("/series", s.handleSeries)
	mux.HandleFunc("/spread-series", s.handleSpreadSeries)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", observability.Handler())
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.HandleWS)
	}
	return mux
}

type resolveResponse struct {
	Reference domain.ContractReference  `json:"reference"`
	Contracts []domain.ResolvedContract `json:"contracts"`
}

type seriesResponse struct {
	Reference domain.ContractReference  `json:"reference"`
	Contracts []domain.ResolvedContract `json:"contracts"`
	Bars      []*domain.PriceBar        `json:"bars"`
}

type spreadSeriesResponse struct {
	Reference domain.ContractReference  `json:"reference"`
	Contracts []domain.ResolvedContract `json:"contracts"`
	Bars      []*domain.SpreadBar       `json:"bars"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ref, refDate, _, err := queryParams(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	parsed, legs, err := s.svc.ResolveReference(ref, refDate)
	if err != nil {
		s.writeResolutionError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, resolveResponse{Reference: parsed, Contracts: legs})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	ref, refDate, numDays, err := queryParams(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	parsed, legs, err := s.svc.ResolveReference(ref, refDate)
	if err != nil {
		s.writeResolutionError(w, r, err)
		return
	}
	if parsed.Kind == domain.ReferenceSpread {
		s.writeError(w, r, http.StatusBadRequest, service.ErrSpreadReference)
		return
	}

	bars, err := s.svc.GetSeriesForContract(r.Context(), legs[0], refDate, numDays)
	if err != nil {
		s.writeResolutionError(w, r, err)
		return
	}
	if bars == nil {
		bars = []*domain.PriceBar{}
	}

	s.writeJSON(w, r, http.StatusOK, seriesResponse{Reference: parsed, Contracts: legs, Bars: bars})
}

func (s *Server) handleSpreadSeries(w http.ResponseWriter, r *http.Request) {
	ref, refDate, numDays, err := queryParams(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	parsed, legs, err := s.svc.ResolveReference(ref, refDate)
	if err != nil {
		s.writeResolutionError(w, r, err)
		return
	}
	if parsed.Kind != domain.ReferenceSpread {
		s.writeError(w, r, http.StatusBadRequest, service.ErrNotSpreadReference)
		return
	}

	bars, err := s.svc.GetSpreadSeriesForLegs(r.Context(), legs[0], legs[1], refDate, numDays)
	if err != nil {
		s.writeResolutionError(w, r, err)
		return
	}
	if bars == nil {
		bars = []*domain.SpreadBar{}
	}

	s.writeJSON(w, r, http.StatusOK, spreadSeriesResponse{Reference: parsed, Contracts: legs, Bars: bars})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.svc.Status())
}

// queryParams decodes the common ref/date/days query parameters. The
// reference date defaults to today (UTC) and the window to
// defaultWindowDays.
func queryParams(r *http.Request) (ref string, refDate time.Time, numDays int, err error) {
	q := r.URL.Query()

	ref = q.Get("ref")
	if ref == "" {
		return "", time.Time{}, 0, errors.New("missing ref parameter")
	}

	refDate = time.Now().UTC()
	if v := q.Get("date"); v != "" {
		refDate, err = time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			return "", time.Time{}, 0, errors.New("date must be YYYY-MM-DD")
		}
	}

	numDays = defaultWindowDays
	if v := q.Get("days"); v != "" {
		numDays, err = strconv.Atoi(v)
		if err != nil {
			return "", time.Time{}, 0, errors.New("days must be an integer")
		}
	}

	return ref, refDate, numDays, nil
}

// writeResolutionError maps service errors to HTTP status codes: syntax
// and window errors are the caller's fault (400), unresolvable references
// are 404, everything else is a 500.
func (s *Server) writeResolutionError(w http.ResponseWriter, r *http.Request, err error) {
	var serr *reference.SyntaxError
	var nferr *resolver.NotFoundError
	switch {
	case errors.As(err, &serr),
		errors.Is(err, series.ErrInvalidWindow),
		errors.Is(err, service.ErrSpreadReference),
		errors.Is(err, service.ErrNotSpreadReference):
		s.writeError(w, r, http.StatusBadRequest, err)
	case errors.As(err, &nferr):
		s.writeError(w, r, http.StatusNotFound, err)
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		s.writeError(w, r, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	observability.DefaultMetrics.HTTPRequests.
		WithLabelValues(r.URL.Path, strconv.Itoa(status)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("write response")
	}
}
