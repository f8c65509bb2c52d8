package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"modelforge/internal/dsl"
	"modelforge/internal/service"
)

// POST /api/models
func CreateHandler(svc *service.Models, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		draft, ok := bindDraft(c)
		if !ok {
			return
		}
		res, err := svc.Create(c.Request.Context(), draft)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusCreated, "Model and migration created successfully", gin.H{
			"model":     res.Entity,
			"artifacts": res.Artifacts,
		})
	}
}

// GET /api/models
func ListHandler(svc *service.Models, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := svc.List(c.Request.Context())
		if err != nil {
			fail(c, log, err)
			return
		}

		lp := parseListParams(c.Request.URL.Query())
		filtered := filterEntities(all, lp.Q)
		sortEntities(filtered, lp.Sort)

		c.Header("X-Total-Count", strconv.Itoa(len(filtered)))
		out := page(filtered, lp.Offset, lp.Limit)
		if out == nil {
			out = []*dsl.Entity{}
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/models/:id
func GetOneHandler(svc *service.Models, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := svc.Lookup(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		d, err := svc.Show(c.Request.Context(), id)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// PUT /api/models/:id
func UpdateHandler(svc *service.Models, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := svc.Lookup(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		draft, ok := bindDraft(c)
		if !ok {
			return
		}
		e, err := svc.Update(c.Request.Context(), id, draft)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "Model updated successfully", gin.H{"model": e})
	}
}

// DELETE /api/models/:id
func DeleteHandler(svc *service.Models, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := svc.Lookup(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		if err := svc.Delete(c.Request.Context(), id); err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "Model deleted successfully", nil)
	}
}

// GET /api/models/_search?query=
func SearchHandler(svc *service.Models, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := svc.Search(c.Request.Context(), c.Query("query"))
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"models": names})
	}
}

// GET /api/models/:id/preview
func PreviewHandler(svc *service.Models, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := svc.Lookup(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		arts, err := svc.Preview(c.Request.Context(), id)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"artifacts": arts})
	}
}

// POST /api/models/:id/generate
func GenerateHandler(svc *service.Models, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := svc.Lookup(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		res, err := svc.Generate(c.Request.Context(), id)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusCreated, "Model and migration generated successfully", gin.H{
			"model":     res.Entity,
			"artifacts": res.Artifacts,
		})
	}
}
