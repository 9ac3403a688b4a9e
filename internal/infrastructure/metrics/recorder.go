// Package metrics exposes workflow decisions and HTTP traffic as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/garyjia/workflow-gate/internal/application/authz"
	"github.com/garyjia/workflow-gate/internal/application/dispatcher"
	"github.com/garyjia/workflow-gate/internal/domain/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workflow_gate"

// Recorder owns the collectors and the registry they are exposed from
type Recorder struct {
	registry *prometheus.Registry

	instancesCreated *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	denials          *prometheus.CounterVec
	statusChanges    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewRecorder registers all collectors on a fresh registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		instancesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_created_total",
			Help:      "Workflow instances created",
		}, []string{"workflow_id"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Completed state transitions",
		}, []string{"workflow_id", "to_state", "actor_role"}),
		denials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_denials_total",
			Help:      "Transitions rejected by the permission evaluator",
		}, []string{"workflow_id", "reason"}),
		statusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_changes_total",
			Help:      "Instance lifecycle status changes",
		}, []string{"status"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by operation and status code",
		}, []string{"operation", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// Register subscribes the recorder to every domain event type
func (r *Recorder) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeInstanceCreated, "metrics.instances", r.handle)
	d.SubscribeNamed(event.TypeTransitionCompleted, "metrics.transitions", r.handle)
	d.SubscribeNamed(event.TypePermissionDenied, "metrics.denials", r.handle)
	d.SubscribeNamed(event.TypeStatusChanged, "metrics.status", r.handle)
}

func (r *Recorder) handle(_ context.Context, evt *event.Event) error {
	workflowID := evt.GetPayloadString(event.KeyWorkflowID)

	switch evt.Type {
	case event.TypeInstanceCreated:
		r.instancesCreated.WithLabelValues(workflowID).Inc()
	case event.TypeTransitionCompleted:
		r.transitions.WithLabelValues(workflowID, evt.GetPayloadString(event.KeyToState), evt.GetPayloadString(event.KeyActorRole)).Inc()
	case event.TypePermissionDenied:
		reasons := evt.GetPayloadStrings(event.KeyReasons)
		if len(reasons) == 0 {
			reasons = []string{"unspecified"}
		}
		for _, reason := range reasons {
			r.denials.WithLabelValues(workflowID, denialReasonLabel(reason)).Inc()
		}
	case event.TypeStatusChanged:
		r.statusChanges.WithLabelValues(evt.GetPayloadString(event.KeyStatus)).Inc()
	}
	return nil
}

// denialReasonLabel keeps the reason label to the evaluator's canonical set.
func denialReasonLabel(reason string) string {
	switch reason {
	case authz.ReasonNoPositions, authz.ReasonNoPermissions, authz.ReasonForbidden, authz.ReasonNoMatch:
		return reason
	}
	return "other"
}

// ObserveRequest records one served HTTP request
func (r *Recorder) ObserveRequest(operation string, code int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(operation, strconv.Itoa(code)).Inc()
	r.httpDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the registry for tests and embedding
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
