package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reseller/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// AdminKeyHeader carries the static admin key
const AdminKeyHeader = "X-Admin-Key"

// AdminKey guards a route group with a static key compared in constant time
func AdminKey(key string, log *zap.Logger) gin.HandlerFunc {
	expected := []byte(key)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(AdminKeyHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			log.Warn("admin key rejected",
				zap.String("path", c.FullPath()),
				zap.String("client_ip", c.ClientIP()),
				zap.String("request_id", GetRequestID(c)),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Missing or invalid admin key").
					WithRequestID(GetRequestID(c)))
			return
		}
		c.Next()
	}
}
