package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceHeader 请求追踪头，网关回跳排查时让客户带回这个值
const TraceHeader = "X-Trace-ID"

// TraceMiddleware 为每个请求绑定追踪号
// 上游带了就沿用，没带则生成；响应头和响应信封都会回显
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set("traceID", traceID)
		c.Header(TraceHeader, traceID)

		c.Next()
	}
}
