package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/iwtcode/tomographyAdapter/internal/middleware/logging"
	"github.com/iwtcode/tomographyAdapter/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func LoggingMiddleware(parentLogger *logging.Logger) gin.HandlerFunc {
	logger := parentLogger.WithPrefix("HTTP")

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		logger.Info("Request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// AuthMiddleware сверяет токен из "Authorization: Bearer <token>" или из
// параметра token (для websocket) с bcrypt-хешем. Пустой хеш отключает проверку.
func AuthMiddleware(tokenHash string, parentLogger *logging.Logger) gin.HandlerFunc {
	logger := parentLogger.WithPrefix("AUTH")
	hash := []byte(tokenHash)

	return func(c *gin.Context) {
		if tokenHash == "" {
			c.Next()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" || bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
			appErr := errors.NewAppError(errors.UnauthorizedErrorCode, errors.UnauthorizedError, errors.ErrUnauthorized, false)
			logger.Warn("Rejected request", "path", c.Request.URL.Path, "client_ip", c.ClientIP(), "error", appErr)
			c.AbortWithStatusJSON(appErr.Code, gin.H{
				"status": "error",
				"error": gin.H{
					"code":    appErr.Code,
					"message": appErr.Message,
				},
			})
			return
		}
		c.Next()
	}
}
