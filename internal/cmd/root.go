package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/config"
	"github.com/crewline/foreman/internal/controller"
	"github.com/crewline/foreman/internal/log"
	"github.com/crewline/foreman/internal/ux"
)

var (
	flagDir      string
	flagActor    string
	flagLogLevel string
	flagNoColor  bool
)

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Control plane for phased, gated delivery",
	Long: `foreman compiles an externally authored blueprint into a phased plan,
schedules bounded non-overlapping work across capability pools, and
records every plan and phase decision in a durable, replayable log.

Work moves strictly through control gates: a compiled plan must be
approved before its first phase activates, and a finished phase must
be approved before the next one starts. Every transition lands in
.foreman/decisions.jsonl before it takes effect, so a project survives
any restart without losing a decision.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with the given context
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "C", "", "project root (default: walk up from the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagActor, "actor", "", "actor recorded on decision entries (default: actor from foreman.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")
}

// project bundles what every command needs once the controller is open
type project struct {
	root   string
	cfg    *config.Config
	logger *log.Logger
	ctrl   *controller.Controller
}

func (p *project) Close() error {
	return p.ctrl.Close()
}

// projectRoot resolves the project root: --dir wins, otherwise walk up
// from the working directory looking for foreman.yaml or .foreman.
func projectRoot() (string, error) {
	if flagDir != "" {
		return filepath.Abs(flagDir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, _ := ux.DiscoverRoot(cwd)
	return root, nil
}

// loadConfigAt reads the project config at the given root, defaults
// included for a fresh directory.
func loadConfigAt(root string) (*config.Config, error) {
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, ux.EnhanceError(err)
	}
	return cfg, nil
}

// openProject loads the project config and opens the controller at the
// resolved root. Opening always resumes from durable state; a fresh
// directory just resumes from nothing. The caller owns Close.
func openProject(ctx context.Context) (*project, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfigAt(root)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)
	ctrl, err := controller.Open(ctx, root, cfg, logger)
	if err != nil {
		return nil, ux.EnhanceError(err)
	}

	return &project{root: root, cfg: cfg, logger: logger, ctrl: ctrl}, nil
}

// newLogger builds the structured logger from config, with the
// --log-level flag taking precedence
func newLogger(cfg *config.Config) *log.Logger {
	level := cfg.Log.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	return log.New(log.Config{
		Level:  log.ParseLevel(level),
		Format: log.ParseFormat(cfg.Log.Format),
		Output: log.NewOutput(os.Stderr),
	})
}
