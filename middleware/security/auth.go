package security

import (
	"net/http"
	"strings"

	"PRelay/tools/errs"
	security "PRelay/tools/security"

	"github.com/gin-gonic/gin"
)

// CtxUserKey is where the middleware stores the authenticated user id.
const CtxUserKey = "userId"

type Options struct {
	JWT security.Options
	// EnableAuthorizationBearer accepts "Authorization: Bearer xxx"
	// (default true).
	EnableAuthorizationBearer bool
}

func DefaultOptions(jwt security.Options) *Options {
	return &Options{JWT: jwt, EnableAuthorizationBearer: true}
}

// Middleware verifies the bearer token and stores the subject user id in
// the request context.
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("authorization"))
		if opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}

		userID, err := security.Verify(opts.JWT, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid.WithDetail(err.Error()))
			return
		}
		c.Set(CtxUserKey, userID)
		c.Next()
	}
}
