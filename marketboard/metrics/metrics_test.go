package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_Observations(t *testing.T) {
	reg := New(prometheus.NewRegistry())

	reg.ObserveFetch("updated")
	reg.ObserveFetch("updated")
	reg.ObserveFetch("skipped")
	reg.ObserveRanking("craft_profit", 3)
	reg.ObserveStage("ingest", time.Second, errors.New("x"))
	reg.MarkRun(time.Unix(1700000000, 0), 42)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.FetchTotal.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.FetchTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RankingTiers.WithLabelValues("fallback")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(reg.LastRun))
	assert.Equal(t, 42.0, testutil.ToFloat64(reg.CatalogItems))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var reg *Registry
	assert.NotPanics(t, func() {
		reg.ObserveFetch("updated")
		reg.ObserveRanking("craft_profit", 1)
		reg.ObserveStage("propagate", time.Second, nil)
		reg.MarkRun(time.Now(), 1)
	})
}
