package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics are registered on a registry owned by one server so that parallel
// servers in one process never share counters.
type metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	uploadedBytes prometheus.Counter
	authFailures  prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_requests_total",
			Help: "HTTP requests served, by route pattern and status code.",
		}, []string{"route", "code"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_submissions_total",
			Help: "Form submissions, by result (accepted, rejected, late).",
		}, []string{"result"}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interview_uploaded_bytes_total",
			Help: "Decoded image bytes written to the upload directory.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interview_auth_failures_total",
			Help: "Requests rejected for a missing or wrong session token.",
		}),
	}
	m.registry.MustRegister(m.requests, m.submissions, m.uploadedBytes, m.authFailures)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
