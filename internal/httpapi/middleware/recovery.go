package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"github.com/suPer8Hu/sentinel-chat/internal/observability"
	"go.uber.org/zap"
)

func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				observability.FromContext(c.Request.Context(), base).
					Error("panic recovered", zap.Any("panic", r), zap.Stack("stack"))
				if !c.Writer.Written() {
					common.Abort(c, http.StatusInternalServerError, 50000, "internal error")
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
