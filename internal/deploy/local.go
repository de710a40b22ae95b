package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"deepsite_server/internal/utils"
)

// Local exports a site into a directory on disk.
type Local struct {
	baseDir string
	logger  *slog.Logger
}

// NewLocal exports under baseDir/<project name> unless a request names its
// own destination.
func NewLocal(baseDir string, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{baseDir: baseDir, logger: logger}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Deploy(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	dir := req.Destination
	if dir == "" {
		name, ok := utils.DirName(req.ProjectName)
		if !ok {
			return Result{}, fmt.Errorf("deploy: invalid project name %q", req.ProjectName)
		}
		dir = filepath.Join(l.baseDir, name)
	}
	if err := Export(dir, req); err != nil {
		return Result{}, err
	}
	l.logger.Info("site exported", slog.String("dir", dir))
	return Result{Target: l.Name(), Location: dir}, nil
}

// Export writes index.html, README.md and prompt_history.json into dir.
func Export(dir string, req Request) error {
	history, err := promptHistoryFile(req.PromptHistory)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}
	return writeFiles(dir, siteFiles(req, history))
}
