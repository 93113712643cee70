package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	sse "github.com/tmaxmax/go-sse"

	"interview-go/internal/outcome"
	"interview-go/internal/submission"
)

type tokenRequest struct {
	Token string `json:"token"`
}

type okReply struct {
	OK bool `json:"ok"`
}

type heartbeatReply struct {
	OK          bool  `json:"ok"`
	RemainingMs int64 `json:"remainingMs"`
	Extended    bool  `json:"extended"`
}

type deadlineEvent struct {
	RemainingMs int64 `json:"remainingMs"`
}

type resolvedEvent struct {
	Status string `json:"status"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	html, err := s.renderIndex()
	if err != nil {
		s.log.Error("failed to render form", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to render form"})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okReply{OK: true})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.handler().ServeHTTP(w, r)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var snapshot *sse.Message
	var err error
	if s.resolver.Pending() {
		snapshot, err = newMessage(EventDeadline, deadlineEvent{RemainingMs: s.resolver.Remaining().Milliseconds()})
	} else {
		snapshot, err = newMessage(EventResolved, resolvedEvent{Status: s.resolver.Status().String()})
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.events.serve(w, r, snapshot)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := s.readAuthorized(w, r, &req, func() string { return req.Token }); err != nil {
		s.reject(w, r, err)
		return
	}
	if !s.resolver.Pending() {
		s.reject(w, r, ErrSessionClosed)
		return
	}

	writeJSON(w, http.StatusOK, okReply{OK: true})
	flush(w)
	go s.resolver.ResolveWith(outcome.StatusCancelled, s.callbacks.OnCancel)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submission.Request
	if err := s.readAuthorized(w, r, &req, func() string { return req.Token }); err != nil {
		s.reject(w, r, err)
		return
	}
	if !s.resolver.Pending() {
		s.metrics.submissions.WithLabelValues("late").Inc()
		s.reject(w, r, ErrSessionClosed)
		return
	}

	result, err := s.processor.Process(r.Context(), &req)
	if err != nil {
		s.metrics.submissions.WithLabelValues("rejected").Inc()
		s.reject(w, r, err)
		return
	}
	s.metrics.uploadedBytes.Add(float64(result.UploadedBytes))
	if !s.resolver.Pending() {
		s.metrics.submissions.WithLabelValues("late").Inc()
		s.reject(w, r, ErrSessionClosed)
		return
	}

	s.metrics.submissions.WithLabelValues("accepted").Inc()
	writeJSON(w, http.StatusOK, okReply{OK: true})
	flush(w)

	responses := result.Responses
	go s.resolver.ResolveWith(outcome.StatusCompleted, func() {
		if s.callbacks.OnSubmit != nil {
			s.callbacks.OnSubmit(responses)
		}
	})
}

// handleHeartbeat keeps the server deadline in step with activity in the
// form. With a fixed deadline it only reports the time left.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := s.readAuthorized(w, r, &req, func() string { return req.Token }); err != nil {
		s.reject(w, r, err)
		return
	}
	if !s.resolver.Pending() {
		s.reject(w, r, ErrSessionClosed)
		return
	}

	extended := false
	if !s.opts.FixedDeadline && s.session.Timeout > 0 && s.heartbeat.Allow() {
		extended = s.resolver.Extend(s.session.Timeout)
	}
	remaining := s.resolver.Remaining().Milliseconds()
	if extended {
		s.events.publish(EventDeadline, deadlineEvent{RemainingMs: remaining})
	}
	writeJSON(w, http.StatusOK, heartbeatReply{OK: true, RemainingMs: remaining, Extended: extended})
}

// readAuthorized decodes a capped JSON body into dst and checks the token it
// carries.
func (s *Server) readAuthorized(w http.ResponseWriter, r *http.Request, dst any, token func() string) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &maxErr):
			return &BodyTooLargeError{Limit: maxErr.Limit}
		case errors.As(err, &typeErr):
			return ErrInvalidBody
		default:
			return ErrInvalidJSON
		}
	}
	if !s.session.Authorize(token()) {
		s.metrics.authFailures.Inc()
		return ErrInvalidSession
	}
	return nil
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Debug("rejected request",
		slog.String("path", r.URL.Path),
		slog.Int("status", HTTPStatus(err)),
		slog.String("error", err.Error()),
	)
	writeError(w, err)
}

func flush(w http.ResponseWriter) {
	_ = http.NewResponseController(w).Flush()
}
