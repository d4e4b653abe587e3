// ABOUTME: Prometheus metrics for devices on a private registry
// ABOUTME: Device values are read at scrape time; change counts are pushed
package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

const namespace = "sounddevice"

// Metrics holds the registry and the devices it reports on
type Metrics struct {
	reg *prometheus.Registry

	changes *prometheus.CounterVec

	mu      sync.Mutex
	devices map[string]*device.Device
}

// New creates a registry with process and Go runtime collectors plus the
// device collector.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		reg:     reg,
		devices: make(map[string]*device.Device),
		changes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_total",
			Help:      "Count of change notifications delivered per device and kind",
		}, []string{"device", "kind"}),
	}
	reg.MustRegister(&collector{m: m})
	return m
}

// Registry returns the registry to serve
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Add reports on d under its ID. A later Add with the same ID replaces it.
func (m *Metrics) Add(d *device.Device) {
	m.mu.Lock()
	m.devices[d.ID().String()] = d
	m.mu.Unlock()
}

// Remove stops reporting on the device with id
func (m *Metrics) Remove(id device.ID) {
	m.mu.Lock()
	delete(m.devices, id.String())
	m.mu.Unlock()
}

// ObserveChange counts a change notification
func (m *Metrics) ObserveChange(id device.ID, kind device.ChangeKind) {
	m.changes.WithLabelValues(id.String(), kind.String()).Inc()
}

// Snapshots returns a snapshot of every device, ordered by ID
func (m *Metrics) Snapshots() []Snapshot {
	m.mu.Lock()
	ids := make([]string, 0, len(m.devices))
	for id := range m.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	devs := make([]*device.Device, len(ids))
	for i, id := range ids {
		devs[i] = m.devices[id]
	}
	m.mu.Unlock()

	snaps := make([]Snapshot, len(devs))
	for i, d := range devs {
		snaps[i] = Take(d)
	}
	return snaps
}

var (
	deviceLabels    = []string{"device", "backend"}
	directionLabels = []string{"device", "backend", "direction"}

	runningDesc = prometheus.NewDesc(namespace+"_running",
		"Whether the device is exchanging audio (1) or not (0)", deviceLabels, nil)
	validDesc = prometheus.NewDesc(namespace+"_valid",
		"Whether the device was present at the last status query", deviceLabels, nil)
	cpuDesc = prometheus.NewDesc(namespace+"_cpu_usage_ratio",
		"Fraction of the last callback period spent in the audio callback", deviceLabels, nil)
	avgCPUDesc = prometheus.NewDesc(namespace+"_cpu_usage_average_ratio",
		"Smoothed fraction of the callback period spent in the audio callback", deviceLabels, nil)
	callbacksDesc = prometheus.NewDesc(namespace+"_callbacks_total",
		"Audio callbacks that reached the delegate stage", deviceLabels, nil)
	fallbacksDesc = prometheus.NewDesc(namespace+"_fallbacks_total",
		"Audio callbacks answered with silence", deviceLabels, nil)
	delegateErrorsDesc = prometheus.NewDesc(namespace+"_delegate_errors_total",
		"Delegate failures and panics in the audio callback", deviceLabels, nil)
	guardMissesDesc = prometheus.NewDesc(namespace+"_guard_misses_total",
		"Audio callbacks that found the I/O guard held", deviceLabels, nil)
	channelsDesc = prometheus.NewDesc(namespace+"_channels",
		"Native channel count per direction", directionLabels, nil)
	rateDesc = prometheus.NewDesc(namespace+"_sample_rate_hertz",
		"Native sample rate per direction", directionLabels, nil)
)

// collector reads device state on every scrape
type collector struct {
	m *Metrics
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		runningDesc, validDesc, cpuDesc, avgCPUDesc, callbacksDesc,
		fallbacksDesc, delegateErrorsDesc, guardMissesDesc, channelsDesc, rateDesc,
	} {
		ch <- d
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.m.Snapshots() {
		labels := []string{s.ID, s.Backend}
		gauge := func(desc *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, labels...)
		}
		counter := func(desc *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
		}

		gauge(runningDesc, boolValue(s.Running))
		gauge(validDesc, boolValue(s.Valid))
		gauge(cpuDesc, s.CPU)
		gauge(avgCPUDesc, s.AverageCPU)
		counter(callbacksDesc, s.Callbacks)
		counter(fallbacksDesc, s.Fallbacks)
		counter(delegateErrorsDesc, s.DelegateErrors)
		counter(guardMissesDesc, s.GuardMisses)

		for _, dir := range []struct {
			name string
			s    Stream
		}{{"input", s.Input}, {"output", s.Output}} {
			if dir.s.Channels == 0 {
				continue
			}
			ch <- prometheus.MustNewConstMetric(channelsDesc, prometheus.GaugeValue,
				float64(dir.s.Channels), s.ID, s.Backend, dir.name)
			ch <- prometheus.MustNewConstMetric(rateDesc, prometheus.GaugeValue,
				float64(dir.s.SampleRate), s.ID, s.Backend, dir.name)
		}
	}
}
