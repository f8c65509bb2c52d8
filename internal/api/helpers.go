package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"modelforge/internal/dsl"
	"modelforge/internal/service"
	"modelforge/internal/store"
)

// statusFor maps service and store errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrDuplicateArtifact):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes {"error": ...}; presence failures also carry their issues.
func fail(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var ve *service.ValidationError
	if errors.As(err, &ve) {
		body["issues"] = ve.Issues
	}
	if status == http.StatusNotFound {
		body["error"] = "Model not found"
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

func success(c *gin.Context, status int, message string, extra gin.H) {
	body := gin.H{"success": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// bindDraft decodes the request body as an entity draft.
func bindDraft(c *gin.Context) (dsl.EntityDraft, bool) {
	var d dsl.EntityDraft
	if err := c.ShouldBindJSON(&d); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return d, false
	}
	return d, true
}
