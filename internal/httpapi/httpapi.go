package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"retailtrack/internal/apperr"
	"retailtrack/internal/metrics"
	"retailtrack/internal/service"
)

const maxBodyBytes = 1 << 20

type Server struct {
	svc            *service.Service
	auth           *AuthManager
	logger         zerolog.Logger
	metrics        *metrics.HTTPMetrics
	registry       *prometheus.Registry
	allowedOrigin  string
	loginRateLimit int
	validate       *validator.Validate
}

type Options struct {
	AllowedOrigin  string
	LoginRateLimit int
}

func New(svc *service.Service, auth *AuthManager, logger zerolog.Logger, registry *prometheus.Registry, opts Options) *Server {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "http://127.0.0.1:3000"
	}
	if opts.LoginRateLimit < 1 {
		opts.LoginRateLimit = 10
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	// report violations under the json field names clients actually sent
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Server{
		svc:            svc,
		auth:           auth,
		logger:         logger,
		metrics:        metrics.NewHTTPMetrics(registry),
		registry:       registry,
		allowedOrigin:  opts.AllowedOrigin,
		loginRateLimit: opts.LoginRateLimit,
		validate:       validate,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{s.allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(limitBody)

	r.Get("/healthz", s.handleHealth)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(httprate.LimitByIP(s.loginRateLimit, time.Minute)).
			Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/items", s.handleListItems)
			r.Get("/items/low-stock", s.handleLowStockReport)
			r.Get("/items/{code}", s.handleGetItem)
			r.Post("/items/{code}/stock", s.handleAddStock)

			r.Get("/categories", s.handleListCategories)

			r.Post("/sales", s.handleRecordSale)
			r.Get("/sales", s.handleListSales)
			r.Get("/sales/{id}", s.handleGetSale)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)

				r.Post("/items", s.handleCreateItem)
				r.Put("/items/{code}", s.handleUpdateItem)
				r.Delete("/items/{code}", s.handleDeleteItem)

				r.Post("/categories", s.handleCreateCategory)

				r.Get("/users", s.handleListUsers)
				r.Post("/users", s.handleCreateUser)
				r.Put("/users/{id}", s.handleUpdateUser)
				r.Delete("/users/{id}", s.handleDeleteUser)
			})
		})
	})

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, r, apperr.New(apperr.CodeUnauthorized, "missing bearer token"))
			return
		}
		actor, err := s.auth.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := service.ActorFromContext(r.Context())
		if !ok || !actor.IsAdmin() {
			s.writeError(w, r, apperr.New(apperr.CodeForbidden, "admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		duration := time.Since(start)
		s.metrics.ObserveRequest(r.Method, route, statusLabel(ww.Status()), duration)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", duration).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("request")
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func statusLabel(status int) string {
	if status == 0 {
		status = http.StatusOK
	}
	return strconv.Itoa(status)
}

// decodeJSON reads, strictly parses and validates a request body. The
// returned error is always a typed validation error ready for writeError.
func (s *Server) decodeJSON(r *http.Request, dst any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(err, apperr.CodeValidation, "malformed request body")
	}
	if dec.More() {
		return apperr.New(apperr.CodeValidation, "request body must contain a single JSON object")
	}

	if err := s.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]any, len(fieldErrs))
			for _, fe := range fieldErrs {
				details[fe.Field()] = "failed on the '" + fe.Tag() + "' rule"
			}
			return apperr.New(apperr.CodeValidation, "request validation failed").WithDetails(details)
		}
		return apperr.Wrap(err, apperr.CodeValidation, "request validation failed")
	}
	return nil
}

type errorBody struct {
	Code    apperr.Code    `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (s *Server) writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// writeError is the single place where typed errors become HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	meta := apperr.MetadataFor(code)

	body := errorBody{Code: code, Message: meta.PublicMessage}
	if appErr, ok := apperr.As(err); ok && meta.DetailsAllowed {
		body.Message = appErr.Message
		body.Details = appErr.Details
	}

	if meta.HTTPStatus >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(meta.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": body})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}
