package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordAgainst(p Provider) {
	m := NewScanMetrics(p)
	m.ScansTotal.Inc(1, "PASS")
	m.ScansTotal.Inc(1, "FAIL")
	m.CrawlDuration.Observe(2.5)
	m.PagesFetched.Observe(12)
	m.ComplianceScore.Observe(85)
	m.CacheHits.Inc(1, "postgres")
	m.CacheMisses.Inc(1, "postgres")
	m.CheckoutDuration.Observe(4.2)
}

func TestPrometheusProviderRecordsScanInstruments(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{})
	recordAgainst(p)
	require.NoError(t, p.Health(context.Background()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	p.MetricsHandler().ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	exposition := string(body)
	assert.Contains(t, exposition, "kycscan_scan_total")
	assert.Contains(t, exposition, `decision="PASS"`)
	assert.Contains(t, exposition, "kycscan_crawl_duration_seconds")
	assert.Contains(t, exposition, "kycscan_cache_hits_total")
}

func TestPrometheusProviderReusesRegisteredInstruments(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{})
	opts := CounterOpts{CommonOpts: CommonOpts{Namespace: "kycscan", Name: "dup_total", Labels: []string{"k"}}}
	a := p.NewCounter(opts)
	b := p.NewCounter(opts)
	a.Inc(1, "v")
	b.Inc(1, "v")
	require.NoError(t, p.Health(context.Background()))
}

func TestOTelProviderRecordsScanInstruments(t *testing.T) {
	p := NewOTelProvider(OTelProviderOptions{})
	recordAgainst(p)
	require.NoError(t, p.Health(context.Background()))
}

func TestProviderTimerObservesDuration(t *testing.T) {
	for _, p := range []Provider{
		NewNoopProvider(),
		NewPrometheusProvider(PrometheusProviderOptions{}),
		NewOTelProvider(OTelProviderOptions{}),
	} {
		ctor := p.NewTimer(HistogramOpts{CommonOpts: CommonOpts{Namespace: "kycscan", Name: "timer_seconds"}})
		timer := ctor()
		timer.ObserveDuration()
		require.NoError(t, p.Health(context.Background()))
	}
}
