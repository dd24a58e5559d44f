package pipeline

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/jardins/ghlsync/internal/config"
	"github.com/jardins/ghlsync/internal/errors"
	"github.com/jardins/ghlsync/internal/logging"
)

// Generator shells out to the content build commands before a run, so the
// documents on disk are current when the publish stage reads them.
type Generator struct {
	dir      string
	commands []string
	logger   *logging.Logger
}

// NewGenerator creates a generator from its config section.
func NewGenerator(cfg config.GeneratorConfig, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Generator{dir: cfg.Dir, commands: cfg.Commands, logger: logger}
}

// Run executes each configured command in order, stopping at the first
// failure. Command output is captured into the returned error.
func (g *Generator) Run(ctx context.Context) error {
	for _, line := range g.commands {
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		started := time.Now()
		cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
		cmd.Dir = g.dir

		out, err := cmd.CombinedOutput()
		if err != nil {
			return &errors.ErrGenerator{Command: line, Output: string(out), Err: err}
		}

		g.logger.InfoWithContext(ctx, "generator command finished",
			"command", line,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
	return nil
}
