package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"modelforge/internal/service"
)

// ===== META HANDLERS =====

// FieldTypesHandler serves the column-type catalog.
func FieldTypesHandler(svc *service.Models, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := svc.FieldTypes(c.Request.Context())
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
