package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkwell/blog/models"
	"github.com/inkwell/blog/session"
	"github.com/inkwell/blog/store"
	"github.com/inkwell/blog/utils"
)

const (
	// ContextUserIDKey is the key used to store the authorized user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextRoleKey stores the role that was just checked.
	ContextRoleKey = "role"
)

// SessionSource resolves the session of a request; nil data means no session.
type SessionSource interface {
	Current(ctx *gin.Context) (*session.Data, error)
}

// Authorize permits the request only when it carries a session whose user
// currently holds one of the allowed roles. The role is read from the
// credential store on every request rather than from the session, so a
// role change applies without logging the user out. timeout bounds the
// role lookup; zero leaves it to the request context.
func Authorize(sessions SessionSource, users store.UserStore, timeout time.Duration, allowed ...models.Role) gin.HandlerFunc {
	permitted := make(map[models.Role]struct{}, len(allowed))
	for _, r := range allowed {
		permitted[r] = struct{}{}
	}

	return func(ctx *gin.Context) {
		sess, err := sessions.Current(ctx)
		if err != nil {
			utils.Logger.Error("session lookup failed", zap.Error(err), zap.String("path", ctx.Request.URL.Path))
			utils.Error(ctx, http.StatusInternalServerError, 50301, "internal server error")
			ctx.Abort()
			return
		}
		if sess == nil {
			utils.Error(ctx, http.StatusForbidden, 40301, "forbidden")
			ctx.Abort()
			return
		}

		lookupCtx, cancel := lookupContext(ctx.Request.Context(), timeout)
		user, err := users.GetByID(lookupCtx, sess.UserID)
		cancel()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.Error(ctx, http.StatusForbidden, 40303, "forbidden")
				ctx.Abort()
				return
			}
			utils.Logger.Error("role lookup failed", zap.Error(err), zap.Uint("user_id", sess.UserID))
			utils.Error(ctx, http.StatusInternalServerError, 50301, "internal server error")
			ctx.Abort()
			return
		}

		if _, ok := permitted[user.Role]; !ok {
			utils.Error(ctx, http.StatusForbidden, 40302, "forbidden")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserIDKey, user.ID)
		ctx.Set(ContextUsernameKey, user.Username)
		ctx.Set(ContextRoleKey, user.Role)
		ctx.Next()
	}
}

func lookupContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
