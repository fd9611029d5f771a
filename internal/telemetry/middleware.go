package telemetry

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
)

// Route parameters copied onto the request span.
var spanParams = map[string]string{
	"orderId": "refund.order_id",
	"eventId": "refund.event_id",
	"id":      "refund.resource_id",
}

var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// TracingMiddleware traces each request, records its latency and logs it.
// The acting account from X-Account-ID is attached to the span.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := Tracer.Start(ctx, fmt.Sprintf("%s %s", c.Request.Method, route))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)

		spanCtx := span.SpanContext()
		if spanCtx.IsValid() {
			c.Header("X-Trace-ID", spanCtx.TraceID().String())
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		span.SetAttributes(
			semconv.HTTPMethodKey.String(c.Request.Method),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPStatusCodeKey.Int(status),
		)
		if id, err := strconv.ParseInt(c.GetHeader("X-Account-ID"), 10, 64); err == nil {
			span.SetAttributes(attribute.Int64("refund.account_id", id))
		}
		for param, key := range spanParams {
			if v := c.Param(param); v != "" {
				span.SetAttributes(attribute.String(key, v))
			}
		}
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}

		HTTPDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Observe(duration.Seconds())

		if quietPaths[route] {
			return
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("trace_id", spanCtx.TraceID().String()),
		}
		switch {
		case status >= 500:
			Logger.Error("HTTP request", fields...)
		case status >= 400:
			Logger.Warn("HTTP request", fields...)
		default:
			Logger.Info("HTTP request", fields...)
		}
	}
}
