// Package metrics provides a small Provider abstraction over counters,
// gauges, and histograms so the scan engine can be wired to either a
// Prometheus registry or an OpenTelemetry meter without the rest of the
// engine knowing which.
package metrics

import "context"

// Provider is the minimal metrics provider contract used by the engine.
type Provider interface {
	NewCounter(opts CounterOpts) Counter
	NewGauge(opts GaugeOpts) Gauge
	NewHistogram(opts HistogramOpts) Histogram
	NewTimer(h HistogramOpts) func() Timer
	Health(ctx context.Context) error
}

type Counter interface{ Inc(delta float64, labels ...string) }
type Gauge interface {
	Set(v float64, labels ...string)
	Add(delta float64, labels ...string)
}
type Histogram interface{ Observe(v float64, labels ...string) }
type Timer interface{ ObserveDuration(labels ...string) }

type CommonOpts struct {
	Namespace, Subsystem, Name, Help string
	Labels                           []string
}
type CounterOpts struct{ CommonOpts }
type GaugeOpts struct{ CommonOpts }
type HistogramOpts struct {
	CommonOpts
	Buckets []float64
}

// noop provider --------------------------------------------------------------

type noopProvider struct{}
type noopCounter struct{}
type noopGauge struct{}
type noopHistogram struct{}
type noopTimer struct{}

// NewNoopProvider returns a Provider that discards everything; used when no
// metrics backend is configured.
func NewNoopProvider() Provider { return &noopProvider{} }

func (p *noopProvider) NewCounter(CounterOpts) Counter           { return noopCounter{} }
func (p *noopProvider) NewGauge(GaugeOpts) Gauge                 { return noopGauge{} }
func (p *noopProvider) NewHistogram(HistogramOpts) Histogram     { return noopHistogram{} }
func (p *noopProvider) NewTimer(HistogramOpts) func() Timer      { return func() Timer { return noopTimer{} } }
func (p *noopProvider) Health(context.Context) error             { return nil }
func (noopCounter) Inc(float64, ...string)                       {}
func (noopGauge) Set(float64, ...string)                         {}
func (noopGauge) Add(float64, ...string)                         {}
func (noopHistogram) Observe(float64, ...string)                 {}
func (noopTimer) ObserveDuration(...string)                      {}

// ScanMetrics is the fixed set of instruments the scan engine records
// against, built once over a Provider at process start.
type ScanMetrics struct {
	ScansTotal       Counter // labels: decision
	CrawlDuration    Histogram
	PagesFetched     Histogram
	ComplianceScore  Histogram
	CacheHits        Counter // labels: backend
	CacheMisses      Counter // labels: backend
	CheckoutDuration Histogram
}

// NewScanMetrics registers the engine's instrument set against a provider.
func NewScanMetrics(p Provider) *ScanMetrics {
	if p == nil {
		p = NewNoopProvider()
	}
	ns := CommonOpts{Namespace: "kycscan"}
	return &ScanMetrics{
		ScansTotal: p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
			Namespace: ns.Namespace, Subsystem: "scan", Name: "total",
			Help: "Total scans completed by decision", Labels: []string{"decision"},
		}}),
		CrawlDuration: p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{
			Namespace: ns.Namespace, Subsystem: "crawl", Name: "duration_seconds",
			Help: "Crawl wall-clock duration",
		}}),
		PagesFetched: p.NewHistogram(HistogramOpts{
			CommonOpts: CommonOpts{
				Namespace: ns.Namespace, Subsystem: "crawl", Name: "pages_fetched",
				Help: "Pages fetched per scan",
			},
			Buckets: []float64{1, 2, 5, 10, 15, 20},
		}),
		ComplianceScore: p.NewHistogram(HistogramOpts{
			CommonOpts: CommonOpts{
				Namespace: ns.Namespace, Subsystem: "scoring", Name: "overall_score",
				Help: "Compliance score distribution",
			},
			Buckets: []float64{10, 25, 50, 65, 80, 90, 100},
		}),
		CacheHits: p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
			Namespace: ns.Namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Page cache hits", Labels: []string{"backend"},
		}}),
		CacheMisses: p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
			Namespace: ns.Namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Page cache misses", Labels: []string{"backend"},
		}}),
		CheckoutDuration: p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{
			Namespace: ns.Namespace, Subsystem: "checkout", Name: "duration_seconds",
			Help: "Checkout validation wall-clock duration",
		}}),
	}
}
