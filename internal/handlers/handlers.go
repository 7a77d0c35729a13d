package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pixelhost/internal/config"
	"pixelhost/internal/jobs"
	"pixelhost/internal/middleware"
	"pixelhost/internal/models"
	"pixelhost/internal/service"
)

type Uploader interface {
	AdmitUpload(ctx context.Context, input service.UploadInput) (service.UploadResult, error)
}

type Lifecycle interface {
	RequestPurge(ctx context.Context, targetID string, reason models.DeletionReason, requestedBy string) (service.PurgeTicket, error)
	DeleteWithKey(ctx context.Context, storageKey, deletionKey string) (models.Image, error)
}

// Probe checks one backing dependency for the health endpoint.
type Probe func(ctx context.Context) error

type Dependencies struct {
	Uploads   Uploader
	Lifecycle Lifecycle
	Accounts  middleware.AccountGetter
	Reconcile jobs.Enqueuer
	Probes    map[string]Probe
	Gatherer  prometheus.Gatherer
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	uploads   Uploader
	lifecycle Lifecycle
	accounts  middleware.AccountGetter
	reconcile jobs.Enqueuer
	probes    map[string]Probe
	gatherer  prometheus.Gatherer
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Dependencies) HandlerSet {
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return HandlerSet{
		log:       log,
		cfg:       cfg,
		uploads:   deps.Uploads,
		lifecycle: deps.Lifecycle,
		accounts:  deps.Accounts,
		reconcile: deps.Reconcile,
		probes:    deps.Probes,
		gatherer:  gatherer,
	}
}

func (h HandlerSet) Register(router *gin.Engine) {
	upload := router.Group("/upload")
	upload.POST("/extra", h.UploadExtra)
	upload.POST("/sharex", h.UploadShareX)

	router.GET("/images/:key", h.DeleteImage)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.GET("/healthz", h.Health)

	v1 := api.Group("/v1")
	v1.Use(middleware.Auth(h.cfg, h.accounts))
	{
		v1.POST("/users/:id/images/nuke", h.NukeImages)

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireRoles(models.AccountRoleAdmin))
		admin.POST("/reconcile", h.TriggerReconcile)
	}
}
