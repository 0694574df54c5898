package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder publishes vault operation metrics through Prometheus. Attach one
// to the engine options to enable recording; a nil Recorder disables it.
type Recorder struct {
	savesTotal   *prometheus.CounterVec
	loadsTotal   *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	candlesTotal *prometheus.CounterVec
	bytesTotal   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// New creates a Recorder registered on the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a Recorder on the given registerer. Tests pass their own
// registry to avoid duplicate registration.
func NewWith(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		savesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "historyvault_saves_total",
				Help: "Total number of completed symbol saves",
			},
			[]string{"scope"},
		),
		loadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "historyvault_loads_total",
				Help: "Total number of completed symbol loads",
			},
			[]string{"scope"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "historyvault_errors_total",
				Help: "Total number of failed operations",
			},
			[]string{"operation"},
		),
		candlesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "historyvault_candles_total",
				Help: "Total number of candles moved through the vault",
			},
			[]string{"operation"},
		),
		bytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "historyvault_bytes_total",
				Help: "Total bytes written to and read from vault files",
			},
			[]string{"direction"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "historyvault_operation_duration_seconds",
				Help:    "Duration of vault operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordSave(scope string, candles int) {
	r.savesTotal.WithLabelValues(scope).Inc()
	r.candlesTotal.WithLabelValues("save").Add(float64(candles))
}

func (r *Recorder) RecordLoad(scope string, candles int) {
	r.loadsTotal.WithLabelValues(scope).Inc()
	r.candlesTotal.WithLabelValues("load").Add(float64(candles))
}

func (r *Recorder) RecordError(operation string) {
	r.errorsTotal.WithLabelValues(operation).Inc()
}

func (r *Recorder) RecordBytesWritten(n int) {
	r.bytesTotal.WithLabelValues("write").Add(float64(n))
}

func (r *Recorder) RecordBytesRead(n int) {
	r.bytesTotal.WithLabelValues("read").Add(float64(n))
}

func (r *Recorder) ObserveDuration(operation string, d time.Duration) {
	r.duration.WithLabelValues(operation).Observe(d.Seconds())
}
