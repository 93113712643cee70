// Package server runs the loopback HTTP server behind one interview form.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"interview-go/internal/config"
	"interview-go/internal/logging"
	"interview-go/internal/outcome"
	"interview-go/internal/questions"
	"interview-go/internal/session"
	"interview-go/internal/submission"
	"interview-go/internal/upload"
)

const (
	// MaxBodyBytes caps every POST body.
	MaxBodyBytes = 15 << 20

	defaultAddr     = "127.0.0.1:0"
	shutdownTimeout = 2 * time.Second
)

type Options struct {
	Questions     *questions.Set
	Session       session.Session
	Theme         config.Theme
	FixedDeadline bool
	Logger        *slog.Logger
	// Addr overrides the listen address. It must stay on loopback.
	Addr string
}

// Callbacks are invoked at most once, on their own goroutine, after the
// browser has been answered. Either may be nil.
type Callbacks struct {
	OnSubmit func([]submission.ResponseItem)
	OnCancel func()
}

type Server struct {
	opts      Options
	session   session.Session
	callbacks Callbacks
	log       *slog.Logger

	resolver  *outcome.Resolver
	processor *submission.Processor
	events    *events
	metrics   *metrics
	heartbeat *rate.Limiter

	httpServer *http.Server
	closeOnce  sync.Once
	closed     chan struct{}
}

// Handle is a running server.
type Handle struct {
	URL  string
	Port int
	srv  *Server
}

// New builds a server without listening. Start is the usual entry point.
func New(opts Options, callbacks Callbacks) (*Server, error) {
	if opts.Questions == nil || len(opts.Questions.Questions) == 0 {
		return nil, errors.New("server: no questions")
	}
	if opts.Session.Token == "" || opts.Session.ID == "" {
		return nil, errors.New("server: session is not initialized")
	}
	if opts.Theme == "" {
		opts.Theme = config.ThemeAuto
	}

	log := logging.WithSession(logging.Subsystem(opts.Logger, "server"), opts.Session.ID)
	ev, err := newEvents(logging.Subsystem(log, "events"))
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		opts:      opts,
		session:   opts.Session,
		callbacks: callbacks,
		log:       log,
		resolver:  outcome.NewResolver(),
		processor: submission.NewProcessor(opts.Questions, upload.NewStore(opts.Session.UploadDir())),
		events:    ev,
		metrics:   newMetrics(),
		heartbeat: rate.NewLimiter(rate.Every(time.Second), 2),
		closed:    make(chan struct{}),
	}
	s.resolver.OnResolve(s.teardown)
	return s, nil
}

// Start binds 127.0.0.1 on a free port, arms the session deadline and serves
// until the interview resolves. Cancelling ctx resolves it as aborted.
func Start(ctx context.Context, opts Options, callbacks Callbacks) (*Handle, error) {
	s, err := New(opts, callbacks)
	if err != nil {
		return nil, err
	}

	addr := opts.Addr
	if addr == "" {
		addr = defaultAddr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("Failed to start server: %w", err)
	}
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		_ = listener.Close()
		return nil, errors.New("Failed to start server: invalid address")
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.resolver.ArmTimeout(s.session.Timeout)
	s.resolver.Watch(ctx)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server stopped", slog.Any("err", err))
			s.resolver.Resolve(outcome.StatusAborted)
		}
	}()

	h := &Handle{
		URL:  fmt.Sprintf("http://localhost:%d/?session=%s", tcpAddr.Port, s.session.Token),
		Port: tcpAddr.Port,
		srv:  s,
	}
	s.log.Debug("listening", slog.String("url", h.URL), slog.Duration("timeout", s.session.Timeout))
	return h, nil
}

// Handler returns the full middleware and route stack.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(s.loopbackOnly)
	router.Use(securityHeaders)
	router.Use(s.instrument)
	router.Use(s.recoverer)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	router.Group(func(r chi.Router) {
		r.Use(s.requireQueryToken)
		r.Get("/", s.handleIndex)
		r.Get("/health", s.handleHealth)
		r.Get("/events", s.handleEvents)
		r.Get("/metrics", s.handleMetrics)
		for _, name := range []string{"styles.css", "script.js", "theme-light.css", "theme-dark.css"} {
			r.Get("/"+name, assetHandler(name))
		}
	})

	router.Post("/cancel", s.handleCancel)
	router.Post("/submit", s.handleSubmit)
	router.Post("/heartbeat", s.handleHeartbeat)
	return router
}

// Resolver exposes the session outcome.
func (s *Server) Resolver() *outcome.Resolver {
	return s.resolver
}

// teardown runs once, as the first resolver hook: tell open tabs how the
// session ended, then stop streaming and serving.
func (s *Server) teardown(status outcome.Status) {
	s.closeOnce.Do(func() {
		s.log.Debug("session resolved", slog.String("status", status.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.events.finish(ctx, EventResolved, resolvedEvent{Status: status.String()})
		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				_ = s.httpServer.Close()
			}
		}
		close(s.closed)
	})
}

// Close resolves a pending session as aborted and waits for teardown.
func (s *Server) Close() {
	if !s.resolver.Resolve(outcome.StatusAborted) {
		s.teardown(s.resolver.Status())
	}
	<-s.closed
}

func (h *Handle) Close() {
	h.srv.Close()
}

// Done is closed when the interview has resolved and the server is down.
func (h *Handle) Done() <-chan struct{} {
	return h.srv.resolver.Done()
}

func (h *Handle) Status() outcome.Status {
	return h.srv.resolver.Status()
}

func (h *Handle) Resolver() *outcome.Resolver {
	return h.srv.resolver
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}
