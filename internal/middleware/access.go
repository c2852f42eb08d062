package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/buildx-app/backend/internal/activities"
	"github.com/buildx-app/backend/internal/models"
	apperrors "github.com/buildx-app/backend/pkg/errors"
	"github.com/buildx-app/backend/pkg/response"
)

// RequireActivity checks that the authenticated member holds the given
// activity. The stored grant wins: either the AllAccess marker or the
// activity itself must be present. Deactivated accounts are refused
// even with a still-valid token.
func RequireActivity(db *gorm.DB, activity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(CtxUserIDKey)
		if !ok {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}
		userID, _ := v.(uint)

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				response.Error(c, apperrors.ErrUnauthorized)
			} else {
				response.Error(c, apperrors.ErrInternalServer.WithInternal(err))
			}
			c.Abort()
			return
		}

		if !user.IsActive || !holdsActivity(&user, activity) {
			response.Error(c, apperrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}

func holdsActivity(user *models.User, activity string) bool {
	for _, granted := range user.Activities {
		if granted == activities.AllAccess || granted == activity {
			return true
		}
	}
	return false
}
