package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sekikawa/project-management-api/internal/auth"
	"github.com/sekikawa/project-management-api/internal/constants"
	"github.com/sekikawa/project-management-api/internal/errors"
)

// RequireAuth resolves the Authorization bearer header to a principal and
// aborts with 401 when it does not yield an authenticated one.
func RequireAuth(validator *auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := validator.Validate(bearerToken(c))
		if !principal.IsAuthenticated() {
			errors.Unauthorized(c, "")
			c.Abort()
			return
		}
		c.Set(constants.ContextKeyPrincipal, principal)
		c.Next()
	}
}

// GetPrincipal returns the principal RequireAuth stored on the context.
func GetPrincipal(c *gin.Context) auth.Principal {
	v, ok := c.Get(constants.ContextKeyPrincipal)
	if !ok {
		return auth.Anonymous
	}
	p, ok := v.(auth.Principal)
	if !ok {
		return auth.Anonymous
	}
	return p
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
