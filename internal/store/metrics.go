package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsCollector exposes pgxpool statistics as prometheus metrics. It
// reads pool counters at scrape time; register it once per process.
type StatsCollector struct {
	store *Store

	acquiredConns   *prometheus.Desc
	idleConns       *prometheus.Desc
	totalConns      *prometheus.Desc
	maxConns        *prometheus.Desc
	acquireCount    *prometheus.Desc
	emptyAcquires   *prometheus.Desc
	canceledAcquire *prometheus.Desc
}

// NewStatsCollector builds a collector over the store's pool.
func NewStatsCollector(s *Store) *StatsCollector {
	return &StatsCollector{
		store: s,
		acquiredConns: prometheus.NewDesc("reelrate_db_pool_acquired_conns",
			"Connections currently checked out of the pool.", nil, nil),
		idleConns: prometheus.NewDesc("reelrate_db_pool_idle_conns",
			"Idle connections in the pool.", nil, nil),
		totalConns: prometheus.NewDesc("reelrate_db_pool_total_conns",
			"Total connections held by the pool.", nil, nil),
		maxConns: prometheus.NewDesc("reelrate_db_pool_max_conns",
			"Configured pool connection ceiling.", nil, nil),
		acquireCount: prometheus.NewDesc("reelrate_db_pool_acquires_total",
			"Cumulative successful connection acquires.", nil, nil),
		emptyAcquires: prometheus.NewDesc("reelrate_db_pool_empty_acquires_total",
			"Cumulative acquires that had to wait for a free connection.", nil, nil),
		canceledAcquire: prometheus.NewDesc("reelrate_db_pool_canceled_acquires_total",
			"Cumulative acquires canceled by their context.", nil, nil),
	}
}

func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredConns
	ch <- c.idleConns
	ch <- c.totalConns
	ch <- c.maxConns
	ch <- c.acquireCount
	ch <- c.emptyAcquires
	ch <- c.canceledAcquire
}

func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.store.Stats()
	if stat == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(stat.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(stat.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquires, prometheus.CounterValue, float64(stat.EmptyAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.canceledAcquire, prometheus.CounterValue, float64(stat.CanceledAcquireCount()))
}
