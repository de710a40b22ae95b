package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"deepsite_server/internal/deploy"
	"deepsite_server/internal/project"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

func newProjectsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage saved projects",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.store().List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(cmd, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, dimStyle.Render("no projects"))
				return nil
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-36s  %-27s  %s", "ID", "UPDATED", "NAME")))
			for _, r := range records {
				fmt.Fprintf(out, "%-36s  %-27s  %s\n", r.ID, r.UpdatedAt, r.Name)
			}
			return nil
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "Print the records as JSON")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a project record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.store().Load(args[0])
			if err != nil {
				return notFound(err, args[0])
			}
			return writeJSON(cmd, rec)
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.store().Delete(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return notFound(project.ErrNotFound, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	export := &cobra.Command{
		Use:   "export <id> <dir>",
		Short: "Write index.html, README.md and prompt_history.json for a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.store().Load(args[0])
			if err != nil {
				return notFound(err, args[0])
			}
			err = deploy.Export(args[1], deploy.Request{
				ProjectName:   rec.Name,
				HTML:          rec.HTMLContent,
				PromptHistory: rec.PromptHistory,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", rec.ID, args[1])
			return nil
		},
	}

	cmd.AddCommand(list, show, del, export)
	return cmd
}

func notFound(err error, id string) error {
	if errors.Is(err, project.ErrNotFound) {
		return fmt.Errorf("project %s not found", id)
	}
	return err
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
