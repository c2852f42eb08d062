package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/buildx-app/backend/internal/auth"
	"github.com/buildx-app/backend/pkg/errors"
	"github.com/buildx-app/backend/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxRoleKey   = "userRole"
)

// Auth enforces JWT authentication using the supplied token service.
func Auth(tokens *iauth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := tokens.VerifyAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		// Propagate identity into request context
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, userID)
		c.Set(CtxRoleKey, claims.Role)

		c.Next()
	}
}
