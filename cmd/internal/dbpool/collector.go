package dbpool

import "github.com/prometheus/client_golang/prometheus"

// Collector exports Pool.Stats as Prometheus metrics. Values are read on scrape.
type Collector struct {
	pool *Pool

	total        *prometheus.Desc
	idle         *prometheus.Desc
	acquired     *prometheus.Desc
	constructing *prometheus.Desc
	max          *prometheus.Desc
	waiting      *prometheus.Desc

	acquires        *prometheus.Desc
	acquireSeconds  *prometheus.Desc
	acquireErrors   *prometheus.Desc
	acquireTimeouts *prometheus.Desc
	created         *prometheus.Desc
	removed         *prometheus.Desc
	evicted         *prometheus.Desc
	doubleReleases  *prometheus.Desc
}

// NewCollector returns a collector over p. Register it once per registry.
func NewCollector(p *Pool) *Collector {
	d := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("taskbridge_db_pool_"+name, help, nil, nil)
	}
	return &Collector{
		pool: p,

		total:        d("connections", "Open connections (idle, acquired, and constructing)."),
		idle:         d("idle_connections", "Idle connections."),
		acquired:     d("acquired_connections", "Connections currently checked out."),
		constructing: d("constructing_connections", "Connections being dialed."),
		max:          d("max_connections", "Configured maximum pool size."),
		waiting:      d("waiting_acquires", "Callers blocked in Acquire."),

		acquires:        d("acquires_total", "Successful acquisitions."),
		acquireSeconds:  d("acquire_wait_seconds_total", "Cumulative time spent waiting in successful acquisitions."),
		acquireErrors:   d("acquire_errors_total", "Failed acquisitions, timeouts included."),
		acquireTimeouts: d("acquire_timeouts_total", "Acquisitions that exceeded the acquire timeout."),
		created:         d("connections_created_total", "Connections established."),
		removed:         d("connections_removed_total", "Connections closed."),
		evicted:         d("connections_evicted_total", "Connections destroyed on release because they were broken."),
		doubleReleases:  d("double_releases_total", "Release calls on already released handles."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range []*prometheus.Desc{
		c.total, c.idle, c.acquired, c.constructing, c.max, c.waiting,
		c.acquires, c.acquireSeconds, c.acquireErrors, c.acquireTimeouts,
		c.created, c.removed, c.evicted, c.doubleReleases,
	} {
		ch <- desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.pool.Stats()

	gauge := func(desc *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v)
	}
	counter := func(desc *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, v)
	}

	gauge(c.total, float64(st.Total))
	gauge(c.idle, float64(st.Idle))
	gauge(c.acquired, float64(st.Acquired))
	gauge(c.constructing, float64(st.Constructing))
	gauge(c.max, float64(st.Max))
	gauge(c.waiting, float64(st.Waiting))

	counter(c.acquires, float64(st.AcquireCount))
	counter(c.acquireSeconds, st.AcquireDuration.Seconds())
	counter(c.acquireErrors, float64(st.AcquireErrors))
	counter(c.acquireTimeouts, float64(st.AcquireTimeouts))
	counter(c.created, float64(st.Created))
	counter(c.removed, float64(st.Removed))
	counter(c.evicted, float64(st.Evicted))
	counter(c.doubleReleases, float64(st.DoubleReleases))
}
