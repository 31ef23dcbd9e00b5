package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// StatSource is anything that reports pgxpool statistics.
type StatSource interface {
	Stat() *pgxpool.Stat
}

// PoolStatsCollector exports connection pool statistics to Prometheus.
type PoolStatsCollector struct {
	pool StatSource

	acquired    *prometheus.Desc
	idle        *prometheus.Desc
	total       *prometheus.Desc
	max         *prometheus.Desc
	acquires    *prometheus.Desc
	acquireWait *prometheus.Desc
	empty       *prometheus.Desc
}

// NewPoolStatsCollector creates a collector labelled with service.
func NewPoolStatsCollector(pool StatSource, service string) *PoolStatsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("db_pool_"+name, help, nil, prometheus.Labels{"service": service})
	}
	return &PoolStatsCollector{
		pool:        pool,
		acquired:    desc("acquired_connections", "Number of currently acquired connections"),
		idle:        desc("idle_connections", "Number of currently idle connections"),
		total:       desc("total_connections", "Total number of connections in the pool"),
		max:         desc("max_connections", "Maximum number of connections allowed"),
		acquires:    desc("acquire_count_total", "Total number of connection acquires"),
		acquireWait: desc("acquire_duration_seconds_total", "Total time spent acquiring connections"),
		empty:       desc("empty_acquire_count_total", "Acquires that had to wait for a free connection"),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.acquired, c.idle, c.total, c.max, c.acquires, c.acquireWait, c.empty} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stat()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}
	gauge(c.acquired, float64(s.AcquiredConns()))
	gauge(c.idle, float64(s.IdleConns()))
	gauge(c.total, float64(s.TotalConns()))
	gauge(c.max, float64(s.MaxConns()))
	counter(c.acquires, float64(s.AcquireCount()))
	counter(c.acquireWait, s.AcquireDuration().Seconds())
	counter(c.empty, float64(s.EmptyAcquireCount()))
}

// RegisterPoolMetrics registers a pool collector with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool StatSource, service string) error {
	return reg.Register(NewPoolStatsCollector(pool, service))
}
