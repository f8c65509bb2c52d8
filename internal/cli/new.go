package cli

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"modelforge/internal/dsl"
)

// prompter asks the interactive questions of `new`.
type prompter interface {
	Input(message, def string, required bool) (string, error)
	Select(message string, options []string, def string) (string, error)
	Confirm(message string, def bool) (bool, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Input(message, def string, required bool) (string, error) {
	var out string
	opts := []survey.AskOpt{}
	if required {
		opts = append(opts, survey.WithValidator(survey.Required))
	}
	err := survey.AskOne(&survey.Input{Message: message, Default: def}, &out, opts...)
	return strings.TrimSpace(out), err
}

func (surveyPrompter) Select(message string, options []string, def string) (string, error) {
	var out string
	err := survey.AskOne(&survey.Select{Message: message, Options: options, Default: def}, &out)
	return out, err
}

func (surveyPrompter) Confirm(message string, def bool) (bool, error) {
	var out bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &out)
	return out, err
}

func newNewCommand(r *root, p prompter) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Describe a model interactively and generate it",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			types, err := app.Models.FieldTypes(cmd.Context())
			if err != nil {
				return err
			}
			tokens := make([]string, 0, len(types))
			for _, ft := range types {
				tokens = append(tokens, ft.ColumnType)
			}

			draft, err := askDraft(p, tokens)
			if err != nil {
				return err
			}
			ok, err := p.Confirm(fmt.Sprintf("Create %s with %d field(s)?", draft.Name, len(draft.Fields)), true)
			if err != nil || !ok {
				return err
			}

			res, err := app.Models.Create(cmd.Context(), draft)
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

// askDraft collects a description; an empty field name ends the field loop.
func askDraft(p prompter, tokens []string) (dsl.EntityDraft, error) {
	var d dsl.EntityDraft
	var err error

	if d.Name, err = p.Input("Model name:", "", true); err != nil {
		return d, err
	}
	if d.Table, err = p.Input("Table name:", strings.ToLower(d.Name)+"s", true); err != nil {
		return d, err
	}

	for {
		name, err := p.Input("Field name (empty to finish):", "", false)
		if err != nil {
			return d, err
		}
		if name == "" {
			break
		}
		typ, err := p.Select("Column type for "+name+":", tokens, "string")
		if err != nil {
			return d, err
		}
		nullable, err := p.Confirm("Nullable?", false)
		if err != nil {
			return d, err
		}
		d.Fields = append(d.Fields, dsl.FieldDraft{Name: name, Type: typ, Nullable: nullable})
	}

	rels, err := p.Input("Belongs-to relations (name:foreign_key, comma separated):", "", false)
	if err != nil {
		return d, err
	}
	for _, part := range strings.Split(rels, ",") {
		name, fk, ok := strings.Cut(strings.TrimSpace(part), ":")
		if ok && strings.TrimSpace(name) != "" && strings.TrimSpace(fk) != "" {
			d.Relations = append(d.Relations, dsl.Relation{Name: strings.TrimSpace(name), ForeignKey: strings.TrimSpace(fk)})
		}
	}
	return d, nil
}
