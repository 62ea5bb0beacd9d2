package router

import (
	"context"
	"net/http"

	"cobranca/config"
	"cobranca/controllers"
	"cobranca/db"
	"cobranca/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps are the long-lived objects the handlers reach through the gin context.
// RunContext is cancelled on shutdown; trigger runs stop with it.
type Deps struct {
	Engine     controllers.BillingEngine
	Store      *db.BillingStore
	Gatherer   prometheus.Gatherer
	Log        zerolog.Logger
	RunContext context.Context
}

// Initialize wires all routes and middlewares.
func Initialize(r *gin.Engine, cfg config.Configuration, deps Deps) {
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.CORSOrigin))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.Use(Logger(deps.Log))
	api.Use(controllers.SetEngineToContext(deps.Engine))
	if deps.Store != nil {
		api.Use(db.SetStoreToContext(deps.Store))
	}
	if deps.RunContext != nil {
		api.Use(controllers.SetRunContext(deps.RunContext))
	}

	// Trigger externo (cron do SO, pinger HTTP, etc.)
	trigger := api.Group("/billing")
	trigger.Use(TriggerAuthorizer(cfg.Trigger.Token))
	trigger.POST("/trigger", controllers.TriggerBilling)
	trigger.GET("/trigger", controllers.TriggerBilling)

	// Leitura (painel)
	trigger.GET("/rules/:id/preview", controllers.PreviewRule)
	trigger.GET("/rules/:id/runs", controllers.GetRuleRuns)

	deps.Log.Debug().Msg("routes initialized")
}
