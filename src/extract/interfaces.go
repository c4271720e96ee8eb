package extract

import (
	"context"

	"github.com/gin-gonic/gin"
)

// ExtractService 定义文字提取服务接口
type ExtractService interface {
	// 将提取接口的路由注册到 engine
	Start(ctx context.Context, engine *gin.Engine) error
	Cleanup() error
}
