package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"example.com/mergington/internal/domain"
)

// ActivityRecord is one activity in list output.
type ActivityRecord struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// ActivityList renders as one block per activity in text mode.
type ActivityList []ActivityRecord

// RenderText implements textRenderer.
func (l ActivityList) RenderText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No activities")
		return err
	}
	var b strings.Builder
	for _, a := range l {
		enrolled := "none"
		if len(a.Participants) > 0 {
			enrolled = domain.JoinParticipants(a.Participants)
		}
		fmt.Fprintf(&b, "%s\n", a.Name)
		fmt.Fprintf(&b, "  %s\n", a.Description)
		fmt.Fprintf(&b, "  Schedule: %s\n", a.Schedule)
		fmt.Fprintf(&b, "  Participants (%d/%d): %s\n", len(a.Participants), a.MaxParticipants, enrolled)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List activities and their participants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, rootOpts)
		},
	}
}

func runList(cmd *cobra.Command, opts *RootOptions) error {
	f := opts.formatter(cmd)

	store, err := opts.openStore(cmd.Context(), f)
	if err != nil {
		return err
	}
	defer store.Close()

	activities, err := domain.NewService(store).ListActivities(cmd.Context())
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeStore, "list failed", err)
	}

	out := make(ActivityList, 0, len(activities))
	for _, a := range activities {
		participants := a.Participants
		if participants == nil {
			participants = []string{}
		}
		out = append(out, ActivityRecord{
			Name:            a.Name,
			Description:     a.Description,
			Schedule:        a.Schedule,
			MaxParticipants: a.MaxParticipants,
			Participants:    participants,
		})
	}
	return f.Success(out)
}
