package cli

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"modelforge/internal/api"
	"modelforge/internal/dsl"
)

func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if f != nil {
		_ = v.BindPFlag(key, f)
	}
}

func newServeCommand(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := r.open(ctx)
			if err != nil {
				return err
			}
			router := api.NewRouter(app.Models, app.Log, app.Config.DSLDir)
			return api.RunServer(ctx, app.Config.Addr(), router, app.Log)
		},
	}
	cmd.Flags().String("port", "", "HTTP port")
	bindFlag(r.v, "port", cmd.Flags().Lookup("port"))
	return cmd
}

func newFieldTypesCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "field-types",
		Short: "List the column-type catalog",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			items, err := app.Models.FieldTypes(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "LABEL", "COLUMN TYPE")
			for _, ft := range items {
				t.add(ft.Label, ft.ColumnType)
			}
			t.render()
			return nil
		},
	}
}

func newListCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored model descriptions",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			items, err := app.Models.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "No model descriptions yet.")
				return nil
			}
			t := newTable(cmd.OutOrStdout(), "ID", "NAME", "TABLE", "FIELDS")
			for _, e := range items {
				t.add(e.ID, e.Name, e.Table, strconv.Itoa(len(e.Fields)))
			}
			t.render()
			return nil
		},
	}
}

func newShowCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show a description and its current model file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			id, err := app.Models.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			d, err := app.Models.Show(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			title := color.New(color.FgCyan, color.Bold)
			title.Fprintf(out, "%s", d.Entity.Name)
			fmt.Fprintf(out, " (table %s)\n\n", d.Entity.Table)

			t := newTable(out, "FIELD", "LABEL", "TYPE", "FLAGS")
			for _, f := range d.Entity.Fields {
				t.add(f.Name, f.Label, f.Type.ColumnType, fieldFlags(f))
			}
			t.render()

			if d.ModelFileContent == nil {
				color.New(color.FgYellow).Fprintln(out, "\nModel file not generated yet.")
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprint(out, *d.ModelFileContent)
			return nil
		},
	}
}

func fieldFlags(f dsl.Field) string {
	var flags []string
	if f.Nullable {
		flags = append(flags, "nullable")
	}
	if f.Unique {
		flags = append(flags, "unique")
	}
	if f.Index {
		flags = append(flags, "index")
	}
	if f.Default != nil {
		flags = append(flags, "default="+*f.Default)
	}
	if f.Foreign {
		flags = append(flags, "foreign="+f.ForeignTable+"."+f.ForeignKey)
	}
	return strings.Join(flags, ",")
}

func newPreviewCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <id|name>",
		Short: "Print the model and migration without writing them",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			id, err := app.Models.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			arts, err := app.Models.Preview(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, a := range arts {
				color.New(color.FgHiBlack).Fprintf(out, "// %s\n", a.Path)
				fmt.Fprintln(out, a.Content)
			}
			return nil
		},
	}
}

func newGenerateCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <id|name>",
		Short: "Write the model and a fresh migration for a stored description",
		Long: `Write the model and a fresh migration for a stored description.

Generated files are never overwritten: if the model file is already on disk the command fails
with "one of the following files already exists". Remove or rename the old model file first.`,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			id, err := app.Models.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := app.Models.Generate(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, a := range res.Artifacts {
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "created %s\n", a.Path)
			}
			return nil
		},
	}
}

func newImportCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "import [dir]",
		Short: "Create descriptions from *.dsl files",
		Long:  "Create descriptions from every *.dsl file under dir (default: dsl_dir from config).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			dir := app.Config.DSLDir
			if len(args) == 1 {
				dir = args[0]
			}
			drafts, err := dsl.LoadAllEntities(dir)
			if err != nil {
				return err
			}
			if issues := api.LintDrafts(drafts); len(issues) > 0 {
				for _, it := range issues {
					color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "%s.%s: %s\n", it.Entity, it.Field, it.Message)
				}
				return fmt.Errorf("%d blocking issue(s) in %s", len(issues), dir)
			}

			results := app.Models.Import(cmd.Context(), drafts)
			failed := 0
			out := cmd.OutOrStdout()
			for _, res := range results {
				if res.Error != "" {
					failed++
					color.New(color.FgRed).Fprintf(out, "✗ %s: %s\n", res.Name, res.Error)
					continue
				}
				color.New(color.FgGreen).Fprintf(out, "✓ %s (%s)\n", res.Name, res.ID)
			}
			app.Log.Info("import finished", zap.String("dir", dir), zap.Int("failed", failed))
			if failed > 0 {
				return fmt.Errorf("%d of %d descriptions failed", failed, len(results))
			}
			return nil
		},
	}
}

func newSearchCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search generated model files by name",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			names, err := app.Models.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newDeleteCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a stored description (generated files are kept)",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			id, err := app.Models.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := app.Models.Delete(cmd.Context(), id); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
