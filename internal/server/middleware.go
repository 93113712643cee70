package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"interview-go/internal/config"
)

// contentSecurityPolicy allows only same-origin scripts. The page's data is
// an inert JSON block, never inline script.
var contentSecurityPolicy = strings.Join([]string{
	"default-src 'self'",
	"base-uri 'none'",
	"object-src 'none'",
	"frame-ancestors 'none'",
	"img-src 'self' data: blob:",
	"style-src 'self'",
	"script-src 'self'",
	"connect-src 'self'",
	"form-action 'none'",
}, "; ")

func (s *Server) loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !config.IsAllowedClient(config.ClientIP(r.RemoteAddr)) {
			s.log.Debug("rejected non-loopback client", slog.String("remote", r.RemoteAddr))
			writeJSON(w, http.StatusForbidden, errorBody{Error: "Forbidden for client IP."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		// The session token travels in the page URL.
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Content-Security-Policy", contentSecurityPolicy)
		headers.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a handler panic into a 500 JSON reply.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := panicError(rec)
			s.log.Error("handler panic",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Any("err", err),
			)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		}()
		next.ServeHTTP(w, r)
	})
}

// instrument logs each request at debug level and counts it by route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
		)
	})
}

// requireQueryToken guards GET routes with the "session" query parameter.
func (s *Server) requireQueryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.session.Authorize(r.URL.Query().Get("session")) {
			s.metrics.authFailures.Inc()
			s.log.Debug("rejected request with bad token", slog.String("path", r.URL.Path))
			writeText(w, http.StatusForbidden, ErrInvalidSession.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
