// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"time"
	"visamate-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// RequestLogger 是一个 Gin 中间件，用于记录请求级别的访问日志。
// 对话接口是长连接流式响应，这里不缓存请求/响应体，只记录元信息。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
	}
}
