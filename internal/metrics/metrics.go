package metrics

import (
	"net/http"

	"github.com/iwtcode/tomographyAdapter/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics - счетчики менеджера, собранные из потока событий.
type Metrics struct {
	registry *prometheus.Registry

	DevicesOnline prometheus.Gauge
	Messages      *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	Images        *prometheus.CounterVec
	Diagnostics   prometheus.Counter
	Disconnects   *prometheus.CounterVec
	Pending       *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DevicesOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tomography_devices_online",
			Help: "Devices with a live connection",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tomography_messages_total",
			Help: "Messages received from devices",
		}, []string{"device", "function"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tomography_message_failures_total",
			Help: "Messages with a non-success status",
		}, []string{"device", "status"}),
		Images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tomography_images_total",
			Help: "Images received from detectors",
		}, []string{"device"}),
		Diagnostics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tomography_diagnostics_total",
			Help: "Diagnostics reported by the manager",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tomography_disconnects_total",
			Help: "Closed device connections",
		}, []string{"device"}),
		Pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tomography_pending_commands",
			Help: "Commands waiting in a device queue",
		}, []string{"device"}),
	}
	m.registry.MustRegister(
		m.DevicesOnline,
		m.Messages,
		m.Failures,
		m.Images,
		m.Diagnostics,
		m.Disconnects,
		m.Pending,
		collectors.NewGoCollector(),
	)
	return m
}

// Observe учитывает одно событие менеджера.
func (m *Metrics) Observe(ev models.Event) {
	switch ev.Type {
	case models.EventReady:
		m.DevicesOnline.Inc()
	case models.EventDisconnected:
		m.DevicesOnline.Dec()
		m.Disconnects.WithLabelValues(ev.Device).Inc()
	case models.EventDiagnostic:
		m.Diagnostics.Inc()
	case models.EventMessage:
		m.Messages.WithLabelValues(ev.Device, ev.FunctionName).Inc()
		if !ev.OK {
			m.Failures.WithLabelValues(ev.Device, ev.StatusName).Inc()
		}
		if ev.ImageName != "" {
			m.Images.WithLabelValues(ev.Device).Inc()
		}
	}
}

// Refresh обновляет длины очередей по снимку устройств.
func (m *Metrics) Refresh(devices []models.DeviceInfo) {
	for _, d := range devices {
		m.Pending.WithLabelValues(d.Name).Set(float64(d.Pending))
	}
}

// Handler отдает метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
