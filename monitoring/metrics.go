package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
)

type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Help      string            `json:"help,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// key identifies a series: the name plus its sorted labels.
func (m *Metric) key() string {
	if len(m.Labels) == 0 {
		return m.Name
	}
	return m.Name + "{" + formatLabels(m.Labels) + "}"
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, labels[k])
	}
	return strings.Join(parts, ",")
}

// MetricsCollector keeps the latest value of every series.
type MetricsCollector struct {
	mu        sync.RWMutex
	series    map[string]*Metric
	startTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		series:    make(map[string]*Metric),
		startTime: time.Now(),
	}
}

func (mc *MetricsCollector) IncrCounter(name, help string, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	m := &Metric{Name: name, Type: MetricTypeCounter, Labels: labels, Help: help}
	if existing, ok := mc.series[m.key()]; ok {
		existing.Value++
		existing.Timestamp = time.Now()
		return
	}
	m.Value = 1
	m.Timestamp = time.Now()
	mc.series[m.key()] = m
}

func (mc *MetricsCollector) SetGauge(name, help string, value float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	m := &Metric{Name: name, Type: MetricTypeGauge, Value: value, Help: help, Timestamp: time.Now()}
	mc.series[m.key()] = m
}

// Get returns a copy of one series.
func (mc *MetricsCollector) Get(name string, labels map[string]string) (Metric, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	m, ok := mc.series[(&Metric{Name: name, Labels: labels}).key()]
	if !ok {
		return Metric{}, false
	}
	return *m, true
}

func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// ExportPrometheus renders every series in the Prometheus text format,
// including uptime and goroutine gauges sampled at call time.
func (mc *MetricsCollector) ExportPrometheus() string {
	mc.SetGauge("process_uptime_seconds", "Seconds since start", mc.GetUptime().Seconds())
	mc.SetGauge("process_goroutines", "Number of goroutines", float64(runtime.NumGoroutine()))

	mc.mu.RLock()
	keys := make([]string, 0, len(mc.series))
	for k := range mc.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	described := make(map[string]bool)
	for _, k := range keys {
		m := mc.series[k]
		if !described[m.Name] {
			if m.Help != "" {
				fmt.Fprintf(&b, "# HELP %s %s\n", m.Name, m.Help)
			}
			fmt.Fprintf(&b, "# TYPE %s %s\n", m.Name, m.Type)
			described[m.Name] = true
		}
		fmt.Fprintf(&b, "%s %g\n", k, m.Value)
	}
	mc.mu.RUnlock()
	return b.String()
}
