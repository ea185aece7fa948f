package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/pizzaguard/pkg/common"
	"github.com/richxcame/pizzaguard/pkg/logger"
	"go.uber.org/zap"
)

const (
	// HeaderName carries the session id.
	HeaderName = "X-Session-ID"
	// CookieName is the fallback carrier of the session id.
	CookieName = "sid"
	// ContextKey stores the verified *Data in the gin context.
	ContextKey = "session"
)

// Binder runs the device binding check for a session.
type Binder interface {
	BindOrCheckDeviceFingerprint(ctx context.Context, s Session, h http.Header) Result
}

// Middleware loads the caller's session, if any, and enforces device binding.
// Requests without a session id pass through untouched. An invalidated
// session is deleted and the request is rejected with 401.
func Middleware(store *Store, binder Binder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderName)
		if id == "" {
			id, _ = c.Cookie(CookieName)
		}
		if id == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		sess, err := store.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			common.AppErrorResponse(c, common.NewUnauthorizedError("session not found").WithCode(common.CodeSessionInvalidated))
			c.Abort()
			return
		}
		if err != nil {
			logger.ErrorContext(ctx, "failed to load session", zap.Error(err))
			common.ErrorResponse(c, http.StatusInternalServerError, "failed to load session")
			c.Abort()
			return
		}

		res := binder.BindOrCheckDeviceFingerprint(ctx, sess, c.Request.Header)
		if res.Invalidated {
			if err := store.Delete(ctx, sess.ID); err != nil {
				logger.ErrorContext(ctx, "failed to delete invalidated session", zap.Error(err))
			}
			common.AppErrorResponse(c, common.NewUnauthorizedError(res.Reason).WithCode(common.CodeSessionInvalidated))
			c.Abort()
			return
		}

		if err := store.Save(ctx, sess); err != nil {
			logger.WarnContext(ctx, "failed to persist session", zap.Error(err))
		}

		c.Set(ContextKey, sess)
		c.Next()
	}
}

// FromContext returns the session loaded by Middleware.
func FromContext(c *gin.Context) (*Data, bool) {
	v, ok := c.Get(ContextKey)
	if !ok {
		return nil, false
	}
	d, ok := v.(*Data)
	return d, ok
}

