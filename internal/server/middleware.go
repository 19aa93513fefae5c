package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amansir99/trustscan-ai-sub001/internal/adapter"
	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

type contextKey string

const identityKey contextKey = "identity"

// withIdentity stores the authenticated caller on the request context.
func withIdentity(ctx context.Context, identity *adapter.UserIdentity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// identityFrom retrieves the authenticated caller, or nil.
func identityFrom(ctx context.Context) *adapter.UserIdentity {
	identity, _ := ctx.Value(identityKey).(*adapter.UserIdentity)
	return identity
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging logs every request with its status and latency.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration", time.Since(start),
			"remote", clientAddr(r),
		)
	})
}

// withRecovery converts handler panics into 500 responses instead of
// tearing down the connection.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				writeError(w, types.NewError(types.INTERNAL_ERROR, "internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireAuth authenticates the bearer token and stores the identity on
// the context. With no authenticator configured all requests pass.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

// authenticate resolves the request's bearer token.
func (s *Server) authenticate(r *http.Request) (*adapter.UserIdentity, error) {
	if s.auth == nil {
		return nil, nil
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, types.NewError(types.AUTHENTICATION_ERROR, "missing bearer token")
	}

	return s.auth.Authenticate(r.Context(), token)
}

// rateLimited enforces the class limiter keyed by caller identity, and
// attaches the standard X-RateLimit headers to every response.
func (s *Server) rateLimited(class string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := s.apiLimiter
		if class == classAudit {
			limiter = s.auditLimiter
		}

		decision := limiter.Check(class + ":" + clientKey(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())+1))
			writeError(w, types.NewError(types.RATE_LIMIT_ERROR,
				fmt.Sprintf("rate limit exceeded; retry after %s", decision.RetryAfter.Round(time.Second))))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller for rate limiting: the bearer token
// when present, the remote address otherwise.
func clientKey(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		return token
	}
	return clientAddr(r)
}

// clientAddr extracts the remote host without its ephemeral port.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
