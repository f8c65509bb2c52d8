// api/router.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"modelforge/internal/service"
)

// NewRouter wires every route onto a fresh engine. dslRoot is the default import directory.
func NewRouter(svc *service.Models, log *zap.Logger, dslRoot string) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(log), gin.Recovery())

	r.GET("/healthz", HealthHandler())

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/field-types", FieldTypesHandler(svc, log))
		apiGroup.POST("/admin/import", AdminImportHandler(svc, log, dslRoot))

		// static routes first
		apiGroup.GET("/models/_search", SearchHandler(svc, log))
		apiGroup.GET("/models/:id/preview", PreviewHandler(svc, log))
		apiGroup.POST("/models/:id/generate", GenerateHandler(svc, log))

		// CRUD
		apiGroup.GET("/models", ListHandler(svc, log))
		apiGroup.POST("/models", CreateHandler(svc, log))
		apiGroup.GET("/models/:id", GetOneHandler(svc, log))
		apiGroup.PUT("/models/:id", UpdateHandler(svc, log))
		apiGroup.DELETE("/models/:id", DeleteHandler(svc, log))
	}
	return r
}

// RunServer serves h on addr until ctx is cancelled.
func RunServer(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
