package realtime

import (
	"care-chat/observability"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewEngine mounts the chat endpoint, the health probe and the metrics scrape.
func NewEngine(chat *ChatHandler, health *observability.HealthChecker, gatherer prometheus.Gatherer) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/chat/:doctor_id/:user_id", chat.Handle)
	engine.GET("/healthz", func(c *gin.Context) {
		report, healthy := health.Check(c.Request.Context())
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return engine
}
