// Package cli holds the modelforge command tree.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"modelforge/internal/config"
)

// Version is set at build time.
var Version = "dev"

type root struct {
	v          *viper.Viper
	configPath string
	app        *App
	// logger overrides the configured logger; tests set it to zap.NewNop.
	logger *zap.Logger
}

// open loads configuration and wires the application once per invocation.
func (r *root) open(ctx context.Context) (*App, error) {
	if r.app != nil {
		return r.app, nil
	}
	cfg, err := config.Load(r.v, r.configPath)
	if err != nil {
		return nil, err
	}
	log := r.logger
	if log == nil {
		if log, err = NewLogger(cfg.Log); err != nil {
			return nil, err
		}
	}
	app, err := Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	r.app = app
	return app, nil
}

func (r *root) close() {
	if r.app != nil {
		_ = r.app.Close()
		r.app = nil
	}
}

func newRootCommand(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modelforge",
		Short: "Generate Laravel models and migrations from stored model descriptions",
		Long: color.CyanString(`modelforge - model description service

Stores model descriptions (fields, relations, casts, computed attributes) and generates
an Eloquent model class plus a create-table migration for each one.`),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&r.configPath, "config", "c", "", "Path to config file (default ./modelforge.yaml)")
	pf.String("db-driver", "", "Description store driver (sqlite|postgres)")
	pf.String("db-url", "", "Description store DSN (sqlite: file path)")
	pf.String("app-root", "", "Laravel project root")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	bindFlag(r.v, "db.driver", pf.Lookup("db-driver"))
	bindFlag(r.v, "db.url", pf.Lookup("db-url"))
	bindFlag(r.v, "app_root", pf.Lookup("app-root"))
	bindFlag(r.v, "log.level", pf.Lookup("log-level"))

	cmd.AddCommand(
		newServeCommand(r),
		newFieldTypesCommand(r),
		newListCommand(r),
		newShowCommand(r),
		newPreviewCommand(r),
		newGenerateCommand(r),
		newImportCommand(r),
		newSearchCommand(r),
		newDeleteCommand(r),
		newNewCommand(r, surveyPrompter{}),
	)
	return cmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	r := &root{v: viper.New()}
	defer r.close()

	rootCmd := newRootCommand(r)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

var errArgs = errors.New("wrong number of arguments")

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s expects %d, got %d", errArgs, cmd.Name(), n, len(args))
		}
		return nil
	}
}
