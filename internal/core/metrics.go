package core

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer receives ingestion measurements.
type Observer interface {
	ObserveFile(category Category, outcome string)
	ObserveUpload(d time.Duration, bytes int64, err error)
}

// Outcome labels for ObserveFile.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type noopObserver struct{}

func (noopObserver) ObserveFile(Category, string)              {}
func (noopObserver) ObserveUpload(time.Duration, int64, error) {}

func observerOrNoop(o Observer) Observer {
	if o == nil {
		return noopObserver{}
	}
	return o
}

// PrometheusObserver exports ingestion metrics.
type PrometheusObserver struct {
	files          *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	uploadBytes    prometheus.Counter
}

// NewPrometheusObserver registers the ingestion collectors on reg.
// Collectors already registered under the same names are reused.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "dropzone"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Files run through the ingestion pipeline, by category and outcome.",
		}, []string{"category", "outcome"}),
		uploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time spent uploading a file, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes successfully sent to the upload endpoint.",
		}),
	}

	var err error
	if o.files, err = register(reg, o.files); err != nil {
		return nil, fmt.Errorf("register files counter: %w", err)
	}
	if o.uploadDuration, err = register(reg, o.uploadDuration); err != nil {
		return nil, fmt.Errorf("register upload histogram: %w", err)
	}
	if o.uploadBytes, err = register(reg, o.uploadBytes); err != nil {
		return nil, fmt.Errorf("register uploaded bytes counter: %w", err)
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (o *PrometheusObserver) ObserveFile(category Category, outcome string) {
	o.files.WithLabelValues(category.String(), outcome).Inc()
}

func (o *PrometheusObserver) ObserveUpload(d time.Duration, bytes int64, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	o.uploadDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if err == nil && bytes > 0 {
		o.uploadBytes.Add(float64(bytes))
	}
}
