package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/errors"
)

// RecoveryMiddleware answers a panicking handler with a 500 and logs the panic
// on the request logger.
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log := GetLoggerFromContext(c)
		log.Error("Handler panicked", fmt.Errorf("%v", recovered), map[string]interface{}{
			"path": c.Request.URL.Path,
		})
		errors.InternalError(c, "")
		c.Abort()
	})
}
