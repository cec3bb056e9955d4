// Package observability exposes the engine's Prometheus metrics and the
// HTTP endpoint that serves them.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gojosatorou999/jalscan-sih/internal/errors"
)

// RiskMetrics contains metrics for the classifier and rule engine.
type RiskMetrics struct {
	registry          *prometheus.Registry
	InferenceTotal    *prometheus.CounterVec
	InferenceDuration prometheus.Histogram
	FallbackTotal     *prometheus.CounterVec
	VerdictTotal      *prometheus.CounterVec
	ModelReloadTotal  *prometheus.CounterVec
}

// NewRiskMetrics creates risk metrics and registers them.
func NewRiskMetrics(registry *prometheus.Registry) (*RiskMetrics, error) {
	m := &RiskMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, errors.New(err).
			Component("observability").
			Category(errors.CategoryConfiguration).
			Context("metric_group", "risk").
			Build()
	}
	return m, nil
}

func (m *RiskMetrics) initMetrics() error {
	m.InferenceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_inference_total",
		Help: "Total classifier inference attempts by outcome.",
	}, []string{"outcome"})

	m.InferenceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "risk_inference_duration_seconds",
		Help:    "Classifier inference duration in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	m.FallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_fallback_total",
		Help: "Rule engine fallbacks by failure category.",
	}, []string{"category"})

	m.VerdictTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_verdict_total",
		Help: "Verdicts produced by label and source.",
	}, []string{"label", "source"})

	m.ModelReloadTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_model_reload_total",
		Help: "Model artifact reloads by outcome.",
	}, []string{"outcome"})

	return register(m.registry,
		m.InferenceTotal, m.InferenceDuration, m.FallbackTotal,
		m.VerdictTotal, m.ModelReloadTotal)
}

// VisionMetrics contains metrics for the visual state analyzer.
type VisionMetrics struct {
	registry         *prometheus.Registry
	AnalysisTotal    prometheus.Counter
	AnalysisDuration prometheus.Histogram
	SignalMissing    *prometheus.CounterVec
	FlowClassTotal   *prometheus.CounterVec
}

// NewVisionMetrics creates vision metrics and registers them.
func NewVisionMetrics(registry *prometheus.Registry) (*VisionMetrics, error) {
	m := &VisionMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, errors.New(err).
			Component("observability").
			Category(errors.CategoryConfiguration).
			Context("metric_group", "vision").
			Build()
	}
	return m, nil
}

func (m *VisionMetrics) initMetrics() error {
	m.AnalysisTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vision_analysis_total",
		Help: "Total frame sequence analyses.",
	})

	m.AnalysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vision_analysis_duration_seconds",
		Help:    "Frame sequence analysis duration in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})

	m.SignalMissing = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_signal_missing_total",
		Help: "Analyses that could not compute a signal, by signal.",
	}, []string{"signal"})

	m.FlowClassTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_flow_class_total",
		Help: "Flow classifications by class.",
	}, []string{"class"})

	return register(m.registry,
		m.AnalysisTotal, m.AnalysisDuration, m.SignalMissing, m.FlowClassTotal)
}

// AnomalyMetrics contains metrics for the anomaly fusion detector.
type AnomalyMetrics struct {
	registry   *prometheus.Registry
	EventTotal *prometheus.CounterVec
	FusedScore prometheus.Histogram
}

// NewAnomalyMetrics creates anomaly metrics and registers them.
func NewAnomalyMetrics(registry *prometheus.Registry) (*AnomalyMetrics, error) {
	m := &AnomalyMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, errors.New(err).
			Component("observability").
			Category(errors.CategoryConfiguration).
			Context("metric_group", "anomaly").
			Build()
	}
	return m, nil
}

func (m *AnomalyMetrics) initMetrics() error {
	m.EventTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "anomaly_event_total",
		Help: "Emitted anomaly events by type and severity.",
	}, []string{"type", "severity"})

	m.FusedScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "anomaly_fused_score",
		Help:    "Distribution of fused anomaly scores on emitted events.",
		Buckets: []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
	})

	return register(m.registry, m.EventTotal, m.FusedScore)
}

// DatastoreMetrics contains metrics for persistence operations.
type DatastoreMetrics struct {
	registry          *prometheus.Registry
	OperationTotal    *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

// NewDatastoreMetrics creates datastore metrics and registers them.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, errors.New(err).
			Component("observability").
			Category(errors.CategoryConfiguration).
			Context("metric_group", "datastore").
			Build()
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() error {
	m.OperationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datastore_operation_total",
		Help: "Datastore operations by name and outcome.",
	}, []string{"operation", "outcome"})

	m.OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datastore_operation_duration_seconds",
		Help:    "Datastore operation duration in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation"})

	return register(m.registry, m.OperationTotal, m.OperationDuration)
}

// Metrics bundles all metric groups behind one registry.
type Metrics struct {
	Registry  *prometheus.Registry
	Risk      *RiskMetrics
	Vision    *VisionMetrics
	Anomaly   *AnomalyMetrics
	Datastore *DatastoreMetrics
}

// NewMetrics creates a registry with every metric group registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	risk, err := NewRiskMetrics(registry)
	if err != nil {
		return nil, err
	}
	vision, err := NewVisionMetrics(registry)
	if err != nil {
		return nil, err
	}
	anomaly, err := NewAnomalyMetrics(registry)
	if err != nil {
		return nil, err
	}
	ds, err := NewDatastoreMetrics(registry)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Registry:  registry,
		Risk:      risk,
		Vision:    vision,
		Anomaly:   anomaly,
		Datastore: ds,
	}, nil
}

// register registers collectors, unwinding on the first failure.
func register(registry *prometheus.Registry, collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
