package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the pipeline's Prometheus collectors. A nil *Registry is
// valid and records nothing.
type Registry struct {
	FetchTotal     *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	StageDuration  *prometheus.HistogramVec
	RankingQueries *prometheus.CounterVec
	RankingTiers   *prometheus.CounterVec
	LastRun        prometheus.Gauge
	CatalogItems   prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketboard_history_fetch_total",
				Help: "Trade history fetches by outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketboard_history_fetch_duration_seconds",
				Help:    "Duration of trade history requests",
				Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"entries"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketboard_stage_duration_seconds",
				Help:    "Duration of each pipeline stage",
				Buckets: []float64{0.1, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"stage", "result"},
		),
		RankingQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketboard_ranking_queries_total",
				Help: "Ranking queries by metric",
			},
			[]string{"metric"},
		),
		RankingTiers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketboard_ranking_tier_queries_total",
				Help: "Tier queries issued while filling ranking pages",
			},
			[]string{"tier"},
		),
		LastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketboard_last_run_timestamp_seconds",
				Help: "Unix time of the last completed pipeline run",
			},
		),
		CatalogItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketboard_catalog_items",
				Help: "Number of items in the catalog",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			r.FetchTotal,
			r.FetchDuration,
			r.StageDuration,
			r.RankingQueries,
			r.RankingTiers,
			r.LastRun,
			r.CatalogItems,
		)
	}
	return r
}

func (r *Registry) ObserveFetch(outcome string) {
	if r == nil {
		return
	}
	r.FetchTotal.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveFetchDuration(entries string, d time.Duration) {
	if r == nil {
		return
	}
	r.FetchDuration.WithLabelValues(entries).Observe(d.Seconds())
}

func (r *Registry) ObserveStage(stage string, d time.Duration, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.StageDuration.WithLabelValues(stage, result).Observe(d.Seconds())
}

func (r *Registry) ObserveRanking(metric string, tiers int) {
	if r == nil {
		return
	}
	r.RankingQueries.WithLabelValues(metric).Inc()
	for i := 1; i <= tiers; i++ {
		r.RankingTiers.WithLabelValues(tierLabel(i)).Inc()
	}
}

func (r *Registry) MarkRun(t time.Time, catalogSize int) {
	if r == nil {
		return
	}
	r.LastRun.Set(float64(t.Unix()))
	r.CatalogItems.Set(float64(catalogSize))
}

func tierLabel(i int) string {
	switch i {
	case 1:
		return "qualified"
	case 2:
		return "backfill"
	default:
		return "fallback"
	}
}
