// Package api exposes calendars, settings, special events and regeneration
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"reservo/internal/calendar"
	"reservo/internal/model"
	"reservo/internal/regen"
	"reservo/internal/report"
	"reservo/internal/schedule"
)

type CalendarReader interface {
	Days(ctx context.Context, businessID int64, from, to string) ([]calendar.DayView, error)
	Today(ctx context.Context, businessID int64) string
}

type SettingsSaver interface {
	Save(ctx context.Context, businessID int64, req schedule.SaveRequest) (*schedule.SaveResult, error)
}

type SettingsReader interface {
	GetSettings(ctx context.Context, businessID int64) (*model.Settings, error)
}

type ExceptionWriter interface {
	Create(ctx context.Context, businessID int64, req schedule.EventRequest) ([]model.CalendarException, error)
	Delete(ctx context.Context, businessID int64, date string) error
}

type Regenerator interface {
	Regenerate(ctx context.Context, businessID int64, reason model.ChangeReason, opts regen.Options) regen.Result
}

type SlotReader interface {
	ListSlots(ctx context.Context, businessID int64, date string) ([]model.Slot, error)
}

type ReportSource interface {
	Latest(businessID int64) (report.Report, bool)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the services behind the API.
type Deps struct {
	Calendar   CalendarReader
	Settings   SettingsSaver
	Store      SettingsReader
	Exceptions ExceptionWriter
	Regen      Regenerator
	Slots      SlotReader
	Reports    ReportSource
	DB         Pinger
	Redis      redis.UniversalClient
}

// HTTPServer serves the public API.
type HTTPServer struct {
	server   *http.Server
	deps     Deps
	apiKey   string
	validate *validator.Validate
	logger   *zerolog.Logger
}

func NewHTTPServer(port int, apiKey string, deps Deps, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		deps:     deps,
		apiKey:   apiKey,
		validate: newValidator(),
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("GET /api/v1/businesses/{id}/calendar", s.auth(s.handleCalendar))
	mux.Handle("GET /api/v1/businesses/{id}/settings", s.auth(s.handleGetSettings))
	mux.Handle("PUT /api/v1/businesses/{id}/settings", s.auth(s.handleSaveSettings))
	mux.Handle("POST /api/v1/businesses/{id}/exceptions", s.auth(s.handleCreateException))
	mux.Handle("DELETE /api/v1/businesses/{id}/exceptions/{date}", s.auth(s.handleDeleteException))
	mux.Handle("POST /api/v1/businesses/{id}/regenerate", s.auth(s.handleRegenerate))
	mux.Handle("GET /api/v1/businesses/{id}/slots", s.auth(s.handleSlots))
	mux.Handle("GET /api/v1/businesses/{id}/protected", s.auth(s.handleProtected))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is done.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API started")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) auth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("x-api-key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctxPing, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
	}
	if s.deps.Redis != nil {
		if err := s.deps.Redis.Ping(ctxPing).Err(); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// newValidator reports JSON field names in validation errors.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func businessID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &model.ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

type errorResponse struct {
	Error     string                `json:"error"`
	Field     string                `json:"field,omitempty"`
	Conflicts []model.ShiftConflict `json:"conflicts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps service errors to status codes and returns the code.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) int {
	var (
		vErr *model.ValidationError
		cErr *model.ConflictError
		fErr validator.ValidationErrors
	)
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: vErr.Message, Field: vErr.Field})
		return http.StatusUnprocessableEntity
	case errors.As(err, &fErr):
		first := fErr[0]
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: fmt.Sprintf("failed on the '%s' rule", first.Tag()),
			Field: first.Field(),
		})
		return http.StatusUnprocessableEntity
	case errors.As(err, &cErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: cErr.Error(), Conflicts: cErr.Conflicts})
		return http.StatusConflict
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return http.StatusNotFound
	default:
		s.logger.Error().Err(err).Msg("API request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return http.StatusInternalServerError
	}
}
