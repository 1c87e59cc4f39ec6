package otel

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// untracedPaths 探活和指标抓取不产生 span
var untracedPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// GinMiddleware 为每个请求创建 server span，service 写入 span 的 server 属性
func GinMiddleware(service string) gin.HandlerFunc {
	return otelgin.Middleware(service, otelgin.WithFilter(traced))
}

func traced(r *http.Request) bool {
	return !untracedPaths[r.URL.Path]
}
