// internal/server/mux.go
// Package server implements the HTTP shell of the reels service.
// Each request is bound to a viewer session addressed by X-Session-Id; a valid
// bearer token signs that session in as the token subject.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	errordefs "github.com/RegistryAccord/registryaccord-reels-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/identity"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/jwks"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/media"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/schema"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/session"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/telemetry"
)

// ContextKey is used for context values to avoid collisions
// when storing values in request context
type ContextKey string

const (
	// Context keys for storing request-scoped values
	ContextKeyUserID        ContextKey = "userId"        // Subject of the verified bearer token
	ContextKeyCorrelationID ContextKey = "correlationId" // Unique ID for request tracking
	ContextKeySession       ContextKey = "session"       // *session.Session bound to the request

	// HeaderSessionID addresses the viewer session.
	HeaderSessionID = "X-Session-Id"

	uploadURLExpiry   = 15 * time.Minute
	playbackURLExpiry = time.Hour
	maxBodyBytes      = 64 << 10
)

// Options holds the dependencies of the HTTP shell. Sessions is required;
// everything else may be left zero.
type Options struct {
	Sessions *session.Manager
	// Store is used for readiness checks and video submission. Nil means the
	// service runs in demo mode.
	Store    docstore.Store
	Paths    docstore.Paths
	Verifier *jwks.Verifier   // Nil rejects every bearer token
	Identity *identity.Client // Optional confirmation of token subjects
	Media    *media.S3Client  // Nil disables uploads and playback presigning
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// Media limits
	MaxMediaSize     int64
	AllowedMimeTypes []string

	// CORS configuration
	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// Mux handles HTTP requests for the reels service.
type Mux struct {
	mux       *http.ServeMux
	opts      Options
	validator *schema.Validator
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewMux creates a new HTTP mux with every reels endpoint registered.
func NewMux(opts Options) (*http.ServeMux, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m := &Mux{
		mux:       http.NewServeMux(),
		opts:      opts,
		validator: validator,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		tracer:    telemetry.Tracer("reels-server"),
	}

	// Register health endpoints
	m.mux.HandleFunc("/healthz", m.handleHealthz)
	m.mux.HandleFunc("/readyz", m.handleReadyz)
	m.mux.Handle("/metrics", promhttp.Handler())

	m.mux.HandleFunc("/v1/feed", m.method("GET", m.withMiddleware(m.handleFeed)))
	m.mux.HandleFunc("/v1/feed/advance", m.method("POST", m.withMiddleware(m.handleAdvance)))
	m.mux.HandleFunc("/v1/feed/search", m.method("POST", m.withMiddleware(m.handleSearch)))
	m.mux.HandleFunc("/v1/feed/jump", m.method("POST", m.withMiddleware(m.handleJump)))
	m.mux.HandleFunc("/v1/feed/gesture", m.method("POST", m.withMiddleware(m.handleGesture)))
	m.mux.HandleFunc("/v1/videos", m.method("POST", m.withMiddleware(m.handleSubmitVideo)))
	m.mux.HandleFunc("/v1/videos/{videoId}/like", m.method("POST", m.withMiddleware(m.handleToggleLike)))
	m.mux.HandleFunc("/v1/videos/{videoId}/comments", m.method("GET,POST", m.withMiddleware(m.handleComments)))
	m.mux.HandleFunc("/v1/chat", m.method("GET,POST", m.withMiddleware(m.handleChat)))
	m.mux.HandleFunc("/v1/media/uploadInit", m.method("POST", m.withMiddleware(m.handleUploadInit)))

	return m.mux, nil
}

// method ensures the HTTP method is one of a comma separated list. OPTIONS is
// always let through for CORS preflight.
func (m *Mux) method(methods string, h http.HandlerFunc) http.HandlerFunc {
	allowed := strings.Split(methods, ",")
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions && !slices.Contains(allowed, r.Method) {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
			err := errordefs.New(errordefs.FEED_VALIDATION, "method not allowed", "")
			err.HTTPStatus = http.StatusMethodNotAllowed
			m.writeErrorDef(w, err)
			return
		}
		h(w, r)
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withMiddleware applies common middleware to handlers: CORS, correlation
// ids, tracing, metrics, request logging and session binding.
func (m *Mux) withMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if origin := r.Header.Get("Origin"); origin != "" && m.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Expose-Headers", "X-Correlation-Id, X-Session-Id")
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Correlation-Id, X-Session-Id")
				w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Add correlation ID if not present
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set("X-Correlation-Id", correlationID)

		route := r.Pattern
		if route == "" {
			route = r.URL.Path
		}
		ctx, span := m.tracer.Start(r.Context(), r.Method+" "+route, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("correlation.id", correlationID),
		))
		defer span.End()
		ctx = context.WithValue(ctx, ContextKeyCorrelationID, correlationID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			status := strconv.Itoa(rec.status)
			m.metrics.HTTPRequestTotal.WithLabelValues(r.Method, route, status).Inc()
			m.metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
			span.SetAttributes(attribute.Int("http.status_code", rec.status))
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}
		}()

		sess, err := m.opts.Sessions.Get(ctx, r.Header.Get(HeaderSessionID))
		if err != nil {
			m.fail(rec, r.WithContext(ctx), start, err)
			return
		}
		rec.Header().Set(HeaderSessionID, sess.ID)
		ctx = context.WithValue(ctx, ContextKeySession, sess)
		span.SetAttributes(attribute.String("session.id", sess.ID))

		userID, err := m.authenticate(ctx, r)
		if err != nil {
			m.fail(rec, r.WithContext(ctx), start, err)
			return
		}
		if userID == "" {
			sess.Identity.SignOut()
		} else {
			sess.Identity.SignIn(userID)
			ctx = context.WithValue(ctx, ContextKeyUserID, userID)
		}

		r = r.WithContext(ctx)
		h(rec, r)
		// fail has already logged rejected requests.
		if rec.status < http.StatusBadRequest {
			m.logRequest(r, rec.status, time.Since(start), correlationID, nil)
		}
	}
}

// originAllowed reports whether origin may make cross-origin requests.
func (m *Mux) originAllowed(origin string) bool {
	for _, allowed := range m.opts.CORSAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// authenticate returns the subject of the request's bearer token, or "" when
// the request carries no Authorization header.
func (m *Mux) authenticate(ctx context.Context, r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}
	tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || tokenString == "" {
		return "", errordefs.New(errordefs.FEED_AUTHN, "invalid Authorization header format", "")
	}
	if m.opts.Verifier == nil {
		return "", errordefs.New(errordefs.FEED_AUTHN, "token authentication is not configured", "")
	}

	userID, err := m.opts.Verifier.Verify(ctx, tokenString)
	if err != nil {
		return "", errordefs.Wrap(errordefs.FEED_JWT_INVALID, "invalid bearer token", err)
	}

	if m.opts.Identity != nil {
		if _, err := m.opts.Identity.Get(ctx, userID); err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				return "", errordefs.New(errordefs.FEED_AUTHN, "unknown user", "")
			}
			// The token alone is trusted when the identity service is unreachable.
			m.logger.Warn("identity lookup failed", "userId", userID, "error", err)
		}
	}
	return userID, nil
}

// writeSuccess writes a successful response
func (m *Mux) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]interface{}{
		"data": data,
	}
	_ = json.NewEncoder(w).Encode(response)
}

// writeError writes an error response following the feed error taxonomy
func (m *Mux) writeError(w http.ResponseWriter, statusCode int, code, message, correlationID string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	body := map[string]interface{}{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	}
	if details != nil {
		body["details"] = details
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": body})
}

// writeErrorDef writes an error response using the error definitions package
func (m *Mux) writeErrorDef(w http.ResponseWriter, err *errordefs.Error) {
	m.writeError(w, err.HTTPStatus, string(err.Code), err.Message, err.CorrelationID, err.Details)
}

// fail writes err, stamped with the request's correlation id, and logs it.
// Errors outside the taxonomy become FEED_INTERNAL without leaking their text.
func (m *Mux) fail(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	correlationID, _ := r.Context().Value(ContextKeyCorrelationID).(string)
	var def *errordefs.Error
	if !errors.As(err, &def) {
		def = errordefs.Wrap(errordefs.FEED_INTERNAL, "internal error", err)
	}
	def = def.WithCorrelationID(correlationID)
	trace.SpanFromContext(r.Context()).RecordError(err)
	m.writeErrorDef(w, def)
	m.logRequest(r, def.HTTPStatus, time.Since(start), correlationID, err)
}

// logRequest logs request details
func (m *Mux) logRequest(r *http.Request, status int, duration time.Duration, correlationID string, err error) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("user_agent", r.UserAgent()),
		slog.String("remote_addr", r.RemoteAddr),
	}
	if correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}
	if userID, ok := r.Context().Value(ContextKeyUserID).(string); ok && userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}

	switch {
	case err != nil && status >= http.StatusInternalServerError:
		attrs = append(attrs, slog.String("error", err.Error()))
		m.logger.LogAttrs(r.Context(), slog.LevelError, "request completed with error", attrs...)
	case err != nil:
		attrs = append(attrs, slog.String("error", err.Error()))
		m.logger.LogAttrs(r.Context(), slog.LevelWarn, "request rejected", attrs...)
	default:
		m.logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
	}
}

// handleHealthz handles liveness health check requests
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports whether the document store answers. Demo mode is
// always ready.
func (m *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if m.opts.Store == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok (demo)"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// A missing document is a successful round trip.
	if _, err := m.opts.Store.Get(ctx, m.opts.Paths.VideoStat("health-check")); err != nil {
		m.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// sessionFrom returns the session bound by withMiddleware.
func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(ContextKeySession).(*session.Session)
	return s
}

// userFrom returns the verified subject of the request's bearer token, or ""
// for an anonymous request.
func userFrom(ctx context.Context) string {
	userID, _ := ctx.Value(ContextKeyUserID).(string)
	return userID
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errordefs.New(errordefs.FEED_VALIDATION, "invalid JSON", "")
	}
	return nil
}
