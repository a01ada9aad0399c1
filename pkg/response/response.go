package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应信封，业务码见 code.go
// traceId 回显请求追踪号，客户报支付问题时凭它定位单笔请求
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	TraceID string      `json:"traceId,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
		TraceID: c.GetString("traceID"),
	})
}

// Error 错误响应，HTTP 状态码随错误走
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		TraceID: c.GetString("traceID"),
	})
}

// Fail 业务失败响应 (HTTP 200, 业务码非 0)
// 支付失败、取消不符合条件这类可展示给客户的结果走这里
func Fail(c *gin.Context, errCode int, msg string) {
	c.JSON(http.StatusOK, Response{
		Code:    errCode,
		Message: msg,
		TraceID: c.GetString("traceID"),
	})
}
