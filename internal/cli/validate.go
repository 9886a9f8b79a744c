package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ValidationResult summarises a valid catalog file.
type ValidationResult struct {
	Source       string `json:"source"`
	Activities   int    `json:"activities"`
	Participants int    `json:"participants"`
}

// RenderText implements textRenderer.
func (v ValidationResult) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "✓ %s is valid (%d activities, %d participants)\n", v.Source, v.Activities, v.Participants)
	return err
}

// NewValidateCommand creates the validate command. It never touches the store.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [catalog-file]",
		Short: "Check a catalog file without seeding it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var file string
			if len(args) == 1 {
				file = args[0]
			}
			return runValidate(cmd, rootOpts, file)
		},
	}
}

func runValidate(cmd *cobra.Command, opts *RootOptions, file string) error {
	f := opts.formatter(cmd)

	c, source, err := loadCatalog(file)
	if err != nil {
		return fail(f, ExitFailure, ErrCodeCatalog, "invalid catalog", err)
	}

	result := ValidationResult{Source: source, Activities: len(c.Activities)}
	for _, entry := range c.Activities {
		result.Participants += len(entry.Participants)
	}
	return f.Success(result)
}
