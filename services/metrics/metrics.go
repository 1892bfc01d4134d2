// Package metricsvc records the app's prometheus metrics.
package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
)

// Metrics owns its registry so several instances (tests) never clash.
type Metrics struct {
	reg *prometheus.Registry

	leadsCreated    *prometheus.CounterVec
	priorityChanges *prometheus.CounterVec
	assignments     prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ lead.Metrics = (*Metrics)(nil)

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		leadsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_leads_created_total",
			Help: "Leads created, by source.",
		}, []string{"source"}),
		priorityChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_lead_priority_changes_total",
			Help: "Lead priority changes, by previous and new priority.",
		}, []string{"from", "to"}),
		assignments: factory.NewCounter(prometheus.CounterOpts{
			Name: "crm_lead_assignments_total",
			Help: "Leads assigned to a housing advisor.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crm_http_request_duration_seconds",
			Help:    "HTTP request latencies, by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) LeadCreated(source string) {
	m.leadsCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) PriorityChanged(from, to string) {
	m.priorityChanges.WithLabelValues(from, to).Inc()
}

func (m *Metrics) LeadAssigned() {
	m.assignments.Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry is used by tests to gather the recorded values.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
