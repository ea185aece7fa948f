package risk

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/pizzaguard/pkg/common"
)

// ThrottleMiddleware rejects bursts from a single address with 429 and a
// Retry-After header.
func (h *Handler) ThrottleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		d := h.engine.IPThrottle(c.Request.Context(), common.ClientIP(c), h.engine.Now())
		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
			common.AppErrorResponseWithDetails(c,
				common.NewTooManyRequestsError("Too many requests. IP temporarily blocked."),
				gin.H{"retry_after": d.RetryAfterSeconds},
			)
			c.Abort()
			return
		}
		c.Next()
	}
}
