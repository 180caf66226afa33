package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Profiles  *ProfileHandler
	Documents *DocumentHandler
	Reports   *ReportHandler
}

// RegisterRoutes mounts the presentation-layer contract: these endpoints are
// the only entry points the UI is permitted to call.
func RegisterRoutes(r *gin.Engine, h Handlers, metricsHandler http.Handler) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metricsHandler))

	api := r.Group("/v1")
	{
		api.POST("/profiles", h.Profiles.Register)
		api.GET("/profiles", h.Profiles.List)
		api.GET("/profiles/:id", h.Profiles.Get)
		api.DELETE("/profiles/:id", h.Profiles.Delete)

		api.POST("/profiles/:id/documents/analyze", h.Documents.Analyze)
		api.GET("/profiles/:id/documents", h.Documents.List)
		api.GET("/profiles/:id/documents/:docID/source", h.Documents.Source)
		api.DELETE("/profiles/:id/documents/:docID", h.Documents.Delete)
		api.DELETE("/profiles/:id/history", h.Documents.ClearHistory)

		api.POST("/profiles/:id/report", h.Reports.Synthesize)
		api.GET("/profiles/:id/report", h.Reports.Get)
	}
}
