package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	GraphPullsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_graph_pulls_total",
		Help: "Total pull requests against the claim graph.",
	}, []string{"result"}) // fresh | recomputed | cutoff | cycle

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "weft_graph_nodes_total",
		Help: "Current number of nodes in the claim graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "weft_graph_edges_total",
		Help: "Current number of edges in the claim graph.",
	})

	GraphStaleMarksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weft_graph_stale_marks_total",
		Help: "Total nodes marked stale by push propagation.",
	})

	GraphConvergeIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weft_graph_converge_iterations",
		Help:    "Iterations needed to converge cyclic node groups.",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
	})

	DiscoveryStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "weft_discovery_stage_seconds",
		Help:    "Time spent in each discovery stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	ExtractCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_extract_cache_total",
		Help: "Facts-cache outcomes for the extract stage.",
	}, []string{"outcome"}) // reused | extracted | evicted

	PipelinePhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "weft_pipeline_phase_seconds",
		Help:    "Time spent in each template pipeline phase.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	ProgramCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_program_cache_total",
		Help: "Program-layer artifact cache outcomes.",
	}, []string{"artifact", "outcome"}) // overlay|ssr, hit|miss

	ProgramStageReuseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_program_stage_reuse_total",
		Help: "Per-stage reuse vs recompute decisions inside a compile.",
	}, []string{"stage", "outcome"}) // reused | recomputed

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weft_watcher_events_total",
		Help: "Total file system events received by the watcher.",
	})
)
