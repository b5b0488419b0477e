package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/errors"
	"github.com/crewline/foreman/internal/sched"
)

// FileName is the project config file at the project root
const FileName = "foreman.yaml"

// Config defines project-local settings. Everything has a default; a
// project without a foreman.yaml runs fine.
type Config struct {
	// Blueprint is the path to the externally authored blueprint,
	// relative to the project root.
	Blueprint string `yaml:"blueprint"`

	// StateDir holds the durable control state (plan, log, snapshot).
	StateDir string `yaml:"state_dir"`

	// RuntimeDir holds disposable state: the derived index and run
	// directories. Deleting it loses nothing durable.
	RuntimeDir string `yaml:"runtime_dir"`

	// Actor is recorded on decision entries when no override is given
	Actor string `yaml:"actor"`

	// GlobalLimit bounds outstanding tickets across all pools
	GlobalLimit int `yaml:"global_limit"`

	// Pools maps capability tags to slot counts
	Pools map[string]int `yaml:"pools"`

	Log LogSettings `yaml:"log"`
}

// LogSettings configures the structured logger
type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings a fresh project starts with
func Default() *Config {
	return &Config{
		Blueprint:   "blueprint.yaml",
		StateDir:    ".foreman",
		RuntimeDir:  ".foreman_runtime",
		Actor:       "lead",
		GlobalLimit: sched.DefaultGlobalLimit,
		Pools: map[string]int{
			"implementation": 3,
			"design":         1,
			"review":         2,
			"testing":        2,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the project config, applying defaults for anything the
// file leaves unset. A missing file yields pure defaults. A pools block
// in the file replaces the default pools outright rather than merging,
// so the file is the full roster when present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed,
			fmt.Sprintf("failed to read config: %s", path), err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "YAML", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Blueprint == "" {
		c.Blueprint = d.Blueprint
	}
	if c.StateDir == "" {
		c.StateDir = d.StateDir
	}
	if c.RuntimeDir == "" {
		c.RuntimeDir = d.RuntimeDir
	}
	if c.Actor == "" {
		c.Actor = d.Actor
	}
	if c.GlobalLimit == 0 {
		c.GlobalLimit = d.GlobalLimit
	}
	if c.Pools == nil {
		c.Pools = d.Pools
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// Save writes the config file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to marshal config", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed,
			fmt.Sprintf("failed to write config: %s", path), err)
	}
	return nil
}

// Validate rejects settings the scheduler would refuse later, so the
// operator hears about them at load time with the file named.
func (c *Config) Validate() error {
	if c.Blueprint == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "config has an empty blueprint path")
	}
	if c.StateDir == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "config has an empty state_dir")
	}
	if c.RuntimeDir == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "config has an empty runtime_dir")
	}
	if c.GlobalLimit < 0 {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("global_limit %d is negative", c.GlobalLimit))
	}
	for tag, slots := range c.Pools {
		if err := domain.CapabilityTag(tag).Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("pool %q has an invalid capability tag", tag), err)
		}
		if slots < 1 {
			return errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("pool %q has %d slots; every pool needs at least one", tag, slots))
		}
	}
	return nil
}

// SchedConfig converts the pool settings for the scheduler
func (c *Config) SchedConfig() sched.Config {
	pools := make(map[domain.CapabilityTag]int, len(c.Pools))
	for tag, slots := range c.Pools {
		pools[domain.CapabilityTag(tag)] = slots
	}
	return sched.Config{
		GlobalLimit: c.GlobalLimit,
		Pools:       pools,
	}
}

// Path helpers anchor the configured (possibly relative) paths at the
// project root.

func (c *Config) BlueprintPath(root string) string {
	return anchor(root, c.Blueprint)
}

func (c *Config) StatePath(root string) string {
	return anchor(root, c.StateDir)
}

func (c *Config) PlanPath(root string) string {
	return filepath.Join(c.StatePath(root), "plan.json")
}

func (c *Config) StatusMarkdownPath(root string) string {
	return filepath.Join(c.StatePath(root), "STATUS.md")
}

func (c *Config) DecisionsMarkdownPath(root string) string {
	return filepath.Join(c.StatePath(root), "DECISIONS.md")
}

func (c *Config) RuntimePath(root string) string {
	return anchor(root, c.RuntimeDir)
}

func (c *Config) IndexPath(root string) string {
	return filepath.Join(c.RuntimePath(root), "index.db")
}

func (c *Config) RunsRoot(root string) string {
	return filepath.Join(c.RuntimePath(root), "runs")
}

func anchor(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
