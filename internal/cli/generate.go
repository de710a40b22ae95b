package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"deepsite_server/internal/session"

	"github.com/spf13/cobra"
)

type generateOptions struct {
	stream bool
	save   string
	apiKey string
}

func newGenerateCmd(a *app) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <prompt...>",
		Short: "Generate a page from a prompt and print it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generate(cmd, strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Print fragments as they arrive")
	cmd.Flags().StringVar(&opts.save, "save", "", "Save the result as a project with this name")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key (defaults to OPENROUTER_API_KEY)")
	return cmd
}

func (a *app) generate(cmd *cobra.Command, prompt string, opts *generateOptions) error {
	s := session.New(a.sessionDefaults())
	if opts.apiKey != "" {
		s.SetAPIKey(opts.apiKey)
	}

	ctx := cmd.Context()
	if a.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.GenerationTimeout)
		defer cancel()
	}

	out := cmd.OutOrStdout()
	if opts.stream {
		fragments, err := s.Stream(ctx, a.generator(), prompt)
		if err != nil {
			return err
		}
		for fragment := range fragments {
			fmt.Fprint(out, fragment)
		}
		fmt.Fprintln(out)
		if msg := s.Snapshot().LastError; msg != "" {
			return errors.New(msg)
		}
	} else {
		html, err := s.Generate(ctx, a.generator(), prompt)
		if errors.Is(err, session.ErrNoResult) {
			return errors.New(s.Snapshot().LastError)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, html)
	}

	if opts.save != "" {
		id, err := s.SaveAs(a.store(), opts.save)
		if err != nil {
			return fmt.Errorf("save project: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved project %s\n", id)
	}
	return nil
}
