package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/komuness/core/internal/middleware"
	"github.com/komuness/core/internal/modules/publication"
	"github.com/komuness/core/internal/modules/storage/upload"
	"github.com/komuness/core/internal/pkg/response"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var processStart = time.Now()

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth()
	adminMW := middleware.RequireAdmin()

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.Error(c, http.StatusMethodNotAllowed, "Método no permitido", nil)
	})

	api := r.Group("/api")
	api.GET("/health", a.health)
	api.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if a.local != nil {
		upload.NewHandler(a.local).RegisterRoutes(api)
	}

	limited := api.Group("",
		middleware.OptionalAuth(),
		middleware.RateLimit(a.redis.Raw(), a.cfg.RateLimit.Max, a.cfg.RateLimitWindow()),
		middleware.Idempotence(a.redis.Raw()),
	)
	publication.NewHandler(a.pubs, a.cfg.IsDev()).RegisterRoutes(limited, authMW, adminMW)

	admin := api.Group("/admin", authMW, adminMW)
	admin.GET("/cron", func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	admin.POST("/cron/:name/run", func(c *gin.Context) {
		if err := a.sched.RunNow(c.Request.Context(), c.Param("name")); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		response.NoContent(c)
	})
}

func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"database": "ok", "redis": "ok"}
	if err := a.backend.ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		checks["database"] = err.Error()
	}
	if err := a.redis.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		checks["redis"] = err.Error()
	}

	body := gin.H{
		"ok":     status == http.StatusOK,
		"driver": a.backend.driver,
		"checks": checks,
		"uptime": humanizeDuration(time.Since(processStart)),
	}
	if n, err := a.ledger.Pending(ctx); err == nil {
		body["provisionalUploads"] = n
	}
	c.JSON(status, body)
}
