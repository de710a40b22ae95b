package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var errChecksFailed = errors.New("one or more checks failed")

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func newDoctorCmd(a *app) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, storage and upstream access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := []check{
				{name: "projects directory", run: a.checkProjectsDir},
				{name: "api key", run: a.checkAPIKey},
			}
			if !offline {
				checks = append(checks, check{name: "upstream", run: a.checkUpstream})
			}
			return runChecks(cmd, checks)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the upstream request")
	return cmd
}

func runChecks(cmd *cobra.Command, checks []check) error {
	out := cmd.OutOrStdout()
	failed := false
	for _, c := range checks {
		detail, err := c.run(cmd.Context())
		if err != nil {
			failed = true
			fmt.Fprintf(out, "%s %-20s %s\n", failStyle.Render("FAIL"), c.name, err)
			continue
		}
		fmt.Fprintf(out, "%s %-20s %s\n", okStyle.Render("ok  "), c.name, dimStyle.Render(detail))
	}
	if failed {
		return errChecksFailed
	}
	return nil
}

func (a *app) checkProjectsDir(context.Context) (string, error) {
	dir := a.cfg.ProjectsDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return "", fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return dir, nil
}

func (a *app) checkAPIKey(context.Context) (string, error) {
	if a.cfg.OpenRouterAPIKey == "" {
		return "", errors.New("OPENROUTER_API_KEY is not set")
	}
	return "configured", nil
}

func (a *app) checkUpstream(ctx context.Context) (string, error) {
	if a.cfg.OpenRouterAPIKey == "" {
		return "", errors.New("skipped, no api key")
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	n, err := a.generator().Ping(ctx, a.cfg.OpenRouterAPIKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%d models)", a.cfg.OpenRouterBaseURL, n), nil
}
