package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewRouter mounts the control API under /api/v1.
func NewRouter(log zerolog.Logger, service *ServiceHandler, jobs *JobHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	api := r.Group("/api/v1")
	{
		api.GET("/health", HealthCheck)

		api.GET("/service/status", service.Status)
		api.POST("/service/start", service.Start)
		api.POST("/service/stop", service.Stop)
		api.POST("/service/run", service.RunOnce)

		api.POST("/jobs/extract", jobs.ParseJob)
	}
	return r
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
