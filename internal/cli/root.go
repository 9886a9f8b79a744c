// Package cli implements the activityctl administration commands.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"example.com/mergington/internal/domain"
)

// Output formats accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON}

// StoreOpener opens the store a command operates on. The command closes it.
type StoreOpener func(ctx context.Context) (domain.Store, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string
	open   StoreOpener
}

// NewRootCommand creates the activityctl root command.
func NewRootCommand(open StoreOpener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "activityctl",
		Short: "Manage the Mergington High School activity catalog",
		Long: `activityctl seeds and inspects the activity catalog behind the
Mergington High School activities API. It uses the same STORAGE_DRIVER and
connection settings as the API server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (json|text)")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

func (o *RootOptions) openStore(ctx context.Context, f *OutputFormatter) (domain.Store, error) {
	store, err := o.open(ctx)
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeStore, "failed to open store", err)
	}
	return store, nil
}
