package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/handlers"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

func NewRouter(commerce interfaces.CommerceRepository, refunds handlers.Refunds) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "refund-orchestrator"})
	})

	h := handlers.NewRefundHandler(commerce, refunds)

	// Buyer and vendor order routes
	r.POST("/orders/:orderId/refund-requests", h.CreateRefundRequest)
	r.POST("/orders/:orderId/refunds", h.CreateRefund)
	r.GET("/orders/:orderId/refund-summary", h.GetRefundSummary)

	// Request decisions
	r.GET("/events/:eventId/refund-requests", h.ListPendingRequests)
	r.GET("/refund-requests/:id", h.GetRefundRequest)
	r.POST("/refund-requests/:id/approve", h.ApproveRefundRequest)
	r.POST("/refund-requests/:id/reject", h.RejectRefundRequest)

	r.GET("/refund-logs/:id", h.GetRefundLog)

	return r
}
