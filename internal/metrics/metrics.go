// Package metrics exports calculation progress as Prometheus metrics.
package metrics

import (
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"islandga/internal/evo"
)

const namespace = "islandga"

// Collector owns a private registry so that several collectors can coexist
// in one process, which the default registry does not allow.
type Collector struct {
	registry *prometheus.Registry

	bestFitness  *prometheus.GaugeVec
	meanFitness  *prometheus.GaugeVec
	worstFitness *prometheus.GaugeVec
	generation   *prometheus.GaugeVec
	migrations   *prometheus.CounterVec
	runs         *prometheus.CounterVec
}

func NewCollector() *Collector {
	subLabels := []string{"run_id", "subpopulation"}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Best fitness of a sub-population at the last recorded generation.",
		}, subLabels),
		meanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_fitness",
			Help:      "Mean fitness of a sub-population at the last recorded generation.",
		}, subLabels),
		worstFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worst_fitness",
			Help:      "Worst fitness of a sub-population at the last recorded generation.",
		}, subLabels),
		generation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Last recorded generation.",
		}, []string{"run_id"}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Recorded generations that ended with a migration.",
		}, []string{"run_id"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished calculations by termination reason.",
		}, []string{"reason"}),
	}
	c.registry.MustRegister(c.bestFitness, c.meanFitness, c.worstFitness, c.generation, c.migrations, c.runs)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Listener returns an evo.Listener that reports one run under runID.
func (c *Collector) Listener(runID string) *RunListener {
	return &RunListener{collector: c, runID: runID}
}

// RunListener publishes every snapshot it has not seen yet. A migration is
// counted once per generation.
type RunListener struct {
	collector *Collector
	runID     string

	mu   sync.Mutex
	seen int
}

func (l *RunListener) IntermediateResult(result *evo.Result) {
	l.observe(result)
}

func (l *RunListener) FinalResult(result *evo.Result) {
	l.observe(result)
	l.collector.runs.WithLabelValues(result.Reason().String()).Inc()
}

func (l *RunListener) observe(result *evo.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshots := result.Snapshots()
	if l.seen >= len(snapshots) {
		return
	}
	for i := l.seen; i < len(snapshots); i++ {
		// The final snapshot repeats the last recorded generation when the
		// run stops before stepping again.
		if !snapshots[i].Migrated || (i > 0 && snapshots[i-1].Generation == snapshots[i].Generation) {
			continue
		}
		l.collector.migrations.WithLabelValues(l.runID).Inc()
	}
	l.seen = len(snapshots)

	latest := snapshots[len(snapshots)-1]
	l.collector.generation.WithLabelValues(l.runID).Set(float64(latest.Generation))
	for i, sub := range latest.SubPopulations {
		idx := strconv.Itoa(i)
		l.collector.bestFitness.WithLabelValues(l.runID, idx).Set(gaugeValue(sub.Min))
		l.collector.meanFitness.WithLabelValues(l.runID, idx).Set(gaugeValue(sub.Mean))
		l.collector.worstFitness.WithLabelValues(l.runID, idx).Set(gaugeValue(sub.Max))
	}
}

func gaugeValue(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
