package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"modelforge/internal/dsl"
	"modelforge/internal/service"
)

type importReq struct {
	DSLRoot string `json:"dsl_root"` // directory with *.dsl
}

// AdminImportHandler loads every *.dsl description under a directory and creates them.
func AdminImportHandler(svc *service.Models, log *zap.Logger, defaultRoot string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req importReq
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
				return
			}
		}

		root := strings.TrimSpace(req.DSLRoot)
		if root == "" {
			root = defaultRoot
		}

		// 1) read the descriptions
		drafts, err := dsl.LoadAllEntities(root)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "DSL load error", "details": err.Error()})
			return
		}

		// 2) lint the whole batch before touching anything
		if issues := LintDrafts(drafts); len(issues) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "schema has blocking issues",
				"issues":  issues,
				"hint":    "fix DSL and retry",
				"dslRoot": root,
			})
			return
		}

		// 3) create one by one
		results := svc.Import(c.Request.Context(), drafts)
		created := 0
		for _, r := range results {
			if r.Error == "" {
				created++
			}
		}
		log.Info("dsl import finished", zap.String("root", root), zap.Int("entities", len(drafts)), zap.Int("created", created))

		c.JSON(http.StatusOK, gin.H{
			"ok":       created == len(drafts),
			"dslRoot":  root,
			"entities": len(drafts),
			"created":  created,
			"results":  results,
		})
	}
}
