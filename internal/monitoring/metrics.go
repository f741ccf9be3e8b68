package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the harvester. Methods tolerate a
// nil receiver so components can run without a registry in tests.
type Metrics struct {
	ProcessedTotal *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	ImagesTotal    prometheus.Counter
	FlushesTotal   prometheus.Counter
	RecordsFlushed prometheus.Counter
	BatchProgress  prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		ProcessedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_objects_processed_total",
			Help: "The total number of objects processed, by record status",
		}, []string{"status"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g. 'render_failed', 'image_download_failed', 'flush_failed'
		ImagesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harvester_images_downloaded_total",
			Help: "The total number of images downloaded to disk",
		}),
		FlushesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harvester_flushes_total",
			Help: "The total number of successful checkpoint flushes",
		}),
		RecordsFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harvester_records_flushed_total",
			Help: "The total number of object records written to durable storage",
		}),
		BatchProgress: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_batch_progress_ratio",
			Help: "Fraction of the requested object IDs completed so far",
		}),
	}
}

func (m *Metrics) IncProcessed(status string) {
	if m == nil {
		return
	}
	m.ProcessedTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncErrors(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) IncImageDownloaded() {
	if m == nil {
		return
	}
	m.ImagesTotal.Inc()
}

func (m *Metrics) ObserveFlush(records int) {
	if m == nil {
		return
	}
	m.FlushesTotal.Inc()
	m.RecordsFlushed.Add(float64(records))
}

func (m *Metrics) SetProgress(ratio float64) {
	if m == nil {
		return
	}
	m.BatchProgress.Set(ratio)
}
