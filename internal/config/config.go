// Package config handles configuration loading for Foreman.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Foreman.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Git          GitConfig          `mapstructure:"git"`
	Worktrees    WorktreesConfig    `mapstructure:"worktrees"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Runner       RunnerConfig       `mapstructure:"runner"`
	Workspace    WorkspaceConfig    `mapstructure:"workspace"`
	Review       ReviewConfig       `mapstructure:"review"`
}

// AnthropicConfig holds Anthropic API settings for auto-review.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// GitConfig holds repository settings.
type GitConfig struct {
	// BaseBranch is the branch worktrees are created from and merged to.
	BaseBranch string `mapstructure:"base_branch"`
	// Remote is the git remote used for fetch/push. Empty disables pushing.
	Remote string `mapstructure:"remote"`
}

// WorktreesConfig holds worktree placement settings.
type WorktreesConfig struct {
	// Dir is the directory worktrees are created under, relative to the
	// project root unless absolute.
	Dir string `mapstructure:"dir"`
}

// OrchestratorConfig holds orchestration pass settings.
type OrchestratorConfig struct {
	// MaxConcurrent bounds how many workers may be live at once.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// Mode is the default orchestration mode (worktree or plan).
	Mode string `mapstructure:"mode"`
	// PollInterval is the reconciliation poll spacing used by wait/watch.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// WaitTimeout bounds foreman wait when no timeout flag is given.
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

// RunnerConfig holds worker launch settings.
type RunnerConfig struct {
	// Command is the worker executable, e.g. "claude".
	Command string `mapstructure:"command"`
	// Args are fixed arguments placed before the generated prompt.
	Args []string `mapstructure:"args"`
	// MaxDepth caps spawn nesting so workers running foreman cannot
	// recurse without bound.
	MaxDepth int `mapstructure:"max_depth"`
}

// WorkspaceConfig holds new-worktree initialization settings.
type WorkspaceConfig struct {
	// CopyFiles lists repo-relative files copied into each new worktree
	// (untracked env files, local settings).
	CopyFiles []string `mapstructure:"copy_files"`
	// InitCommands lists shell commands run inside each new worktree.
	InitCommands []string `mapstructure:"init_commands"`
}

// ReviewConfig holds auto-review settings.
type ReviewConfig struct {
	// Model is the Anthropic model used to judge completed branches.
	Model string `mapstructure:"model"`
	// AutoApprove promotes completed workers to reviewed when the judge
	// passes them, without a human in the loop.
	AutoApprove bool `mapstructure:"auto_approve"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
//  1. Environment variables (ANTHROPIC_API_KEY)
//  2. Project config (.foreman.yaml in current directory or parent)
//  3. User config (~/.config/foreman/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")

	v.SetDefault("git.base_branch", "main")
	v.SetDefault("git.remote", "")

	v.SetDefault("worktrees.dir", ".foreman/worktrees")

	v.SetDefault("orchestrator.max_concurrent", 4)
	v.SetDefault("orchestrator.mode", "worktree")
	v.SetDefault("orchestrator.poll_interval", "2s")
	v.SetDefault("orchestrator.wait_timeout", "10m")

	v.SetDefault("runner.command", "claude")
	v.SetDefault("runner.args", []string{"--dangerously-skip-permissions"})
	v.SetDefault("runner.max_depth", 3)

	v.SetDefault("workspace.copy_files", []string{})
	v.SetDefault("workspace.init_commands", []string{})

	v.SetDefault("review.model", "claude-sonnet-4-5")
	v.SetDefault("review.auto_approve", false)
}

// getUserConfigDir returns the XDG config directory for Foreman.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "foreman")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "foreman")
	}
	return filepath.Join(home, ".config", "foreman")
}

// findProjectConfig searches for .foreman.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".foreman.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Git: GitConfig{
			BaseBranch: "main",
		},
		Worktrees: WorktreesConfig{
			Dir: ".foreman/worktrees",
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrent: 4,
			Mode:          "worktree",
			PollInterval:  2 * time.Second,
			WaitTimeout:   10 * time.Minute,
		},
		Runner: RunnerConfig{
			Command:  "claude",
			Args:     []string{"--dangerously-skip-permissions"},
			MaxDepth: 3,
		},
		Review: ReviewConfig{
			Model: "claude-sonnet-4-5",
		},
	}
}
