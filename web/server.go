package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mileage/auth"
	dbt "mileage/db/db"
	"mileage/metrics"
	"mileage/mq/mq"
	"mileage/service"
)

type ServiceConfig struct {
	IsDev     bool
	Port      string
	RateLimit float64 // requests per second per client IP
	RateBurst int

	Service *service.Service
	Store   dbt.MileageDBWrapper
	Events  mq.MileageMessageQueueWrapper
	Tokens  *auth.TokenIssuer
	Log     logrus.FieldLogger
}

func NewRouter(cfg ServiceConfig) *gin.Engine {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 40
	}
	if !cfg.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	setupMiddlewares(r, cfg)
	h := &handler{svc: cfg.Service, store: cfg.Store, events: cfg.Events, tokens: cfg.Tokens, log: cfg.Log}

	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.POST("/auth/employee", h.loginEmployee)
	api.POST("/auth/admin", h.loginAdmin)

	authed := api.Group("", authMiddleware(cfg.Tokens), DriverDataLoaderInjectionMiddleware(cfg.Store))
	authed.GET("/me", h.me)
	authed.GET("/events", h.streamEvents)

	authed.GET("/rates/:year", h.listRates)
	authed.GET("/rates/:year/:month", h.getRates)

	authed.GET("/records", h.listRecords)
	authed.POST("/records", h.createRecord)
	authed.DELETE("/records/:id", h.deleteRecord)

	authed.GET("/submissions", h.listSubmissions)
	authed.POST("/submissions", h.submit)
	authed.DELETE("/submissions/:year/:month", h.cancelSubmission)
	authed.GET("/submissions/:id/statement.pdf", h.statement)

	admin := authed.Group("", requireAdminMiddleware())
	admin.GET("/drivers", h.listDrivers)
	admin.POST("/drivers", h.addDriver)
	admin.PUT("/drivers/:id", h.updateDriver)
	admin.DELETE("/drivers/:id", h.deleteDriver)
	admin.PUT("/rates/:year/:month", h.saveRates)
	admin.POST("/submissions/:id/complete", h.complete)
	admin.POST("/submissions/:id/cancel", h.cancelCompletion)
	admin.POST("/settlements/:year/:month/bulk", h.bulkSettle)
	admin.POST("/settlements/:year/:month/close", h.closeMonth)
	admin.GET("/reports/:year/:month", h.monthlyReport)

	return r
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests.
func Serve(ctx context.Context, cfg ServiceConfig) error {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		cfg.Log.WithField("port", cfg.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	cfg.Log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
