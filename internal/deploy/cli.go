package deploy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"deepsite_server/internal/types"
)

// CLI deploys through a provider's command line tool. When no tool path is
// configured the bundle is still assembled but the upload is skipped and the
// result is flagged as simulated.
type CLI struct {
	name    string
	cliPath string
	config  types.SiteFile
	args    func(dir string, req Request) []string
	env     func(req Request) []string
	logger  *slog.Logger
}

const netlifyToml = `[build]
publish = "."
`

const vercelJSON = `{
  "version": 2,
  "builds": [
    { "src": "*.html", "use": "@vercel/static" }
  ]
}
`

func NewNetlify(cliPath string, logger *slog.Logger) *CLI {
	return newCLI("netlify", cliPath, newFile("netlify.toml", netlifyToml), logger,
		func(dir string, req Request) []string {
			args := []string{"deploy", "--prod", "--dir", dir}
			if req.Destination != "" {
				args = append(args, "--site", req.Destination)
			}
			return args
		},
		func(req Request) []string {
			return []string{"NETLIFY_AUTH_TOKEN=" + req.Credential}
		})
}

func NewVercel(cliPath string, logger *slog.Logger) *CLI {
	return newCLI("vercel", cliPath, newFile("vercel.json", vercelJSON), logger,
		func(dir string, req Request) []string {
			args := []string{"deploy", dir, "--prod", "--yes"}
			if req.Credential != "" {
				args = append(args, "--token", req.Credential)
			}
			if req.Destination != "" {
				args = append(args, "--name", req.Destination)
			}
			return args
		},
		nil)
}

func newCLI(name, cliPath string, config types.SiteFile, logger *slog.Logger,
	args func(string, Request) []string, env func(Request) []string) *CLI {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLI{name: name, cliPath: cliPath, config: config, args: args, env: env, logger: logger}
}

func (c *CLI) Name() string { return c.name }

func (c *CLI) Deploy(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	tempDir, err := os.MkdirTemp("", "deepsite-"+c.name+"-*")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := writeFiles(tempDir, siteFiles(req, c.config)); err != nil {
		return Result{}, err
	}

	if c.cliPath == "" {
		c.logger.Warn("no CLI configured, deployment simulated",
			slog.String("target", c.name),
			slog.String("project", req.ProjectName))
		return Result{Target: c.name, Simulated: true}, nil
	}

	cmd := exec.CommandContext(ctx, c.cliPath, c.args(tempDir, req)...)
	if c.env != nil {
		cmd.Env = append(os.Environ(), c.env(req)...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Info("running deploy CLI", slog.String("target", c.name), slog.String("path", c.cliPath))
	if err := cmd.Run(); err != nil {
		c.logger.Warn("deploy CLI failed", slog.String("target", c.name), slog.String("stderr", stderr.String()))
		return Result{}, fmt.Errorf("%s deploy failed: %w (stderr: %s)", c.name, err, strings.TrimSpace(stderr.String()))
	}

	url := extractURL(stdout.String())
	if url == "" {
		c.logger.Warn("could not find a URL in CLI output", slog.String("target", c.name))
	}
	return Result{Target: c.name, URL: url}, nil
}

// extractURL returns the last https URL printed by a CLI.
func extractURL(output string) string {
	var url string
	for _, field := range strings.Fields(output) {
		if idx := strings.Index(field, "https://"); idx != -1 {
			url = strings.TrimRight(field[idx:], ".,;)\"'")
		}
	}
	return url
}
