package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apperrors "github.com/buildx-app/backend/pkg/errors"
	"github.com/buildx-app/backend/pkg/response"
)

// Health returns a simple status payload useful for readiness checks.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}

// Readiness reports whether the database connection is usable.
func Readiness(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			response.Error(c, apperrors.New("SERVICE_UNAVAILABLE", "Database unreachable", http.StatusServiceUnavailable).WithInternal(err))
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ready"})
	}
}
