// Package cli defines the Cobra commands of the deepsite binary.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"deepsite_server/config"
	"deepsite_server/internal/ai"
	"deepsite_server/internal/deploy"
	"deepsite_server/internal/logger"
	"deepsite_server/internal/project"
	"deepsite_server/internal/session"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev" // set via ldflags at build time

// app is the state shared by every command once configuration is loaded.
type app struct {
	configDir string
	envFile   string

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "deepsite",
		Short: "AI-assisted single page website editor",
		Long: `deepsite generates HTML pages from natural-language prompts, keeps
them as local projects and publishes them to static hosting.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config", ".", "Directory containing config.yaml")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file loaded before configuration")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newGenerateCmd(a))
	root.AddCommand(newProjectsCmd(a))
	root.AddCommand(newDoctorCmd(a))
	return root
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) load(cmd *cobra.Command) error {
	// A missing .env is normal outside development.
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("error loading env file", slog.String("file", a.envFile), slog.String("error", err.Error()))
	}

	cfg, err := config.LoadConfig(a.configDir)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}
	a.cfg = cfg
	// stdout is reserved for command output
	a.logger = logger.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	return nil
}

func (a *app) generator() *ai.Generator {
	return ai.NewGenerator(a.cfg.OpenRouterBaseURL, ai.WithLogger(a.logger))
}

func (a *app) store() *project.Store {
	return project.NewStore(a.cfg.ProjectsDir, a.logger)
}

func (a *app) sessionDefaults() session.Defaults {
	return session.Defaults{
		APIKey:   a.cfg.OpenRouterAPIKey,
		Theme:    a.cfg.EditorTheme,
		FontSize: a.cfg.EditorFontSize,
	}
}

func (a *app) deployers() *deploy.Registry {
	return deploy.NewRegistry(
		deploy.NewGitHub(a.cfg.GitHubAPIURL, a.logger),
		deploy.NewNetlify(a.cfg.NetlifyCLIPath, a.logger),
		deploy.NewVercel(a.cfg.VercelCLIPath, a.logger),
		deploy.NewLocal(".", a.logger),
	)
}
