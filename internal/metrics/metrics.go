package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by the API and the worker.
type Metrics struct {
	UploadsTotal       *prometheus.CounterVec // pixelhost_uploads_total{result}
	UploadBytes        prometheus.Counter     // pixelhost_upload_bytes_total
	ShortIDCollisions  prometheus.Counter     // pixelhost_short_id_collisions_total
	PurgeJobsTotal     *prometheus.CounterVec // pixelhost_purge_jobs_total{result}
	PurgeObjectsTotal  *prometheus.CounterVec // pixelhost_purge_objects_total{step,result}
	PurgeDuration      prometheus.Histogram   // pixelhost_purge_duration_seconds
	AccountsReconciled *prometheus.CounterVec // pixelhost_accounts_reconciled_total{result}
}

// New registers all collectors on registry, or on the default registerer when nil.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelhost_uploads_total",
			Help: "Upload attempts by result",
		}, []string{"result"}),

		UploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "pixelhost_upload_bytes_total",
			Help: "Payload bytes written to the object store",
		}),

		ShortIDCollisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "pixelhost_short_id_collisions_total",
			Help: "Short ids regenerated after a uniqueness violation",
		}),

		PurgeJobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelhost_purge_jobs_total",
			Help: "Purge jobs by lifecycle stage and result",
		}, []string{"result"}),

		PurgeObjectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelhost_purge_objects_total",
			Help: "Per-object purge steps by result",
		}, []string{"step", "result"}),

		PurgeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixelhost_purge_duration_seconds",
			Help:    "Time for a purge batch to settle",
			Buckets: prometheus.DefBuckets,
		}),

		AccountsReconciled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelhost_accounts_reconciled_total",
			Help: "Accounts whose image count was recomputed",
		}, []string{"result"}),
	}
}
