package cli

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"modelforge/internal/artifact"
	"modelforge/internal/cmdqueue"
	"modelforge/internal/codegen"
	"modelforge/internal/config"
	"modelforge/internal/db"
	"modelforge/internal/reference"
	"modelforge/internal/service"
	"modelforge/internal/store"
)

// App holds everything a command needs once configuration is loaded.
type App struct {
	Config config.Config
	Log    *zap.Logger
	Models *service.Models

	conn *sql.DB
}

// NewLogger builds the process logger from the log settings.
func NewLogger(c config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Open connects the description store, seeds the catalog and wires the service.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	dialect, err := db.ParseDialect(cfg.DB.Driver)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(dialect, cfg.DB.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", dialect, err)
	}

	catalog, err := reference.LoadFieldTypes(cfg.FieldTypesFile)
	if err != nil {
		conn.Close()
		return nil, err
	}
	st := store.New(conn, dialect, log)
	if err := st.Bootstrap(ctx, catalog); err != nil {
		conn.Close()
		return nil, err
	}

	files, err := openArtifacts(ctx, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}

	models := service.New(st, files, log, service.Options{
		Layout:        codegen.Layout{ModelsDir: cfg.ModelsDir, MigrationsDir: cfg.MigrationsDir},
		Generator:     codegen.Generator{Namespace: cfg.Namespace},
		TwoPhaseWrite: cfg.TwoPhaseWrite,
		PostCommands:  cfg.PostGenerateCommands,
		CommandDir:    cfg.AppRoot,
		Runner:        cmdqueue.ShellRunner,
	})
	log.Debug("application wired",
		zap.String("db", string(dialect)),
		zap.String("artifacts", cfg.Artifacts.Driver),
		zap.Int("field_types", len(catalog)))

	return &App{Config: cfg, Log: log, Models: models, conn: conn}, nil
}

func openArtifacts(ctx context.Context, cfg config.Config) (artifact.Store, error) {
	if cfg.Artifacts.Driver == "s3" {
		s3cfg := cfg.Artifacts.S3
		return artifact.NewS3Store(ctx, artifact.S3Config{
			Region:    s3cfg.Region,
			Bucket:    s3cfg.Bucket,
			Prefix:    s3cfg.Prefix,
			Endpoint:  s3cfg.Endpoint,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
		})
	}
	return &artifact.LocalStore{Root: cfg.AppRoot}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	_ = a.Log.Sync()
	return a.conn.Close()
}
