package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sampleflow/sampleflow/internal/samples/sse"
	"github.com/sampleflow/sampleflow/internal/samples/store"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	Request *RequestHandler
	Product *ProductHandler
	SSE     *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(requests *store.RequestStore, hub *sse.Hub, logger *zap.Logger) *Handlers {
	return &Handlers{
		Request: NewRequestHandler(requests, logger),
		Product: NewProductHandler(),
		SSE:     NewSSEHandler(hub),
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}
