// Package metrics provides a lightweight Prometheus-compatible collector for
// the bot. It renders text/plain exposition format without pulling in the
// heavy prometheus/client_golang dependency.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide metrics collector.
var Collector = NewCollector()

// MetricsCollector aggregates counters and histograms.
type MetricsCollector struct {
	mu         sync.Mutex
	counters   []*Counter
	histograms []*Histogram
	startTime  time.Time
}

func NewCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// Counter registers and returns a counter.
func (c *MetricsCollector) Counter(name, help string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctr := &Counter{name: name, help: help}
	c.counters = append(c.counters, ctr)
	return ctr
}

// Histogram registers and returns a histogram with the given bucket bounds.
func (c *MetricsCollector) Histogram(name, help string, buckets []float64) *Histogram {
	c.mu.Lock()
	defer c.mu.Unlock()
	sort.Float64s(buckets)
	hb := make([]histBucket, len(buckets))
	for i, b := range buckets {
		hb[i] = histBucket{le: b}
	}
	h := &Histogram{name: name, help: help, buckets: hb}
	c.histograms = append(c.histograms, h)
	return h
}

// Render returns the Prometheus exposition text for all registered metrics.
func (c *MetricsCollector) Render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP cyanbot_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE cyanbot_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "cyanbot_uptime_seconds %d\n", int64(c.Uptime().Seconds()))

	for _, ctr := range c.counters {
		fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
		fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
		fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
	}

	for _, h := range c.histograms {
		h.mu.Lock()
		fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
		fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
		for _, b := range h.buckets {
			le := fmt.Sprintf("%g", b.le)
			if math.IsInf(b.le, 1) {
				le = "+Inf"
			}
			fmt.Fprintf(&sb, "%s_bucket{le=%q} %d\n", h.name, le, b.count)
		}
		fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
		fmt.Fprintf(&sb, "%s_sum %f\n", h.name, h.sum)
		h.mu.Unlock()
	}

	return sb.String()
}

// Handler serves the exposition text over HTTP.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, c.Render())
	}
}

// Metrics used across the pipeline.
var (
	MessagesTotal = Collector.Counter("cyanbot_messages_total", "Inbound messages entering the pipeline")
	EngagedTotal  = Collector.Counter("cyanbot_engaged_total", "Messages the bot decided to answer")
	IgnoredTotal  = Collector.Counter("cyanbot_ignored_total", "Messages filtered out by channel or keyword rules")
	ErrorsTotal   = Collector.Counter("cyanbot_errors_total", "Pipeline runs ending in the apology reply")
	RepliesTotal  = Collector.Counter("cyanbot_replies_total", "Replies delivered to channels")

	CompletionLatency = Collector.Histogram("cyanbot_completion_latency_seconds",
		"Completion backend latency in seconds",
		[]float64{0.5, 1, 2, 5, 10, 30, 60, 120})
)
