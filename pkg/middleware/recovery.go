package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/learnhub/pkg/apperror"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にスタックトレースをログに出力し、構造化された500エラーを返す。
// debugがtrueの場合のみ、パニックの内容をレスポンスのdetailに含める。
func Recovery(logger *slog.Logger, debugMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("パニックから回復しました",
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				apperror.Abort(c, apperror.Internal(fmt.Errorf("panic: %v", r)), debugMode)
			}
		}()
		c.Next()
	}
}
