// Package config defines the lessonmate configuration schema and loader.
// The config file is YAML, loaded from ~/.lessonmate/config.yaml by default.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// LLMConfig selects and configures the language-model backend.
type LLMConfig struct {
	// Provider is "gemini" or "openai" (any OpenAI-compatible endpoint).
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
	APIBase  string `yaml:"apiBase,omitempty"`
}

// AgentDefaults holds default values for agent behaviour.
type AgentDefaults struct {
	MaxTokens    int     `yaml:"maxTokens"`
	Temperature  float64 `yaml:"temperature"`
	MaxToolIter  int     `yaml:"maxToolIterations"`
	MemoryWindow int     `yaml:"memoryWindow"`
}

// ToolProviderConfig holds the launch parameters for one tool provider
// subprocess.
type ToolProviderConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// ToolsConfig configures the tool provider subprocesses, one per agent that
// uses tools, plus the shared per-call invoke timeout in seconds.
type ToolsConfig struct {
	Stock                ToolProviderConfig `yaml:"stock"`
	Schedule             ToolProviderConfig `yaml:"schedule"`
	Work                 ToolProviderConfig `yaml:"work"`
	InvokeTimeoutSeconds int                `yaml:"invokeTimeoutSeconds"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Token     string   `yaml:"token"`
	AllowFrom []string `yaml:"allowFrom,omitempty"`
}

// ChannelsConfig holds all chat-channel configs.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// GatewayConfig configures the HTTP/websocket gateway.
type GatewayConfig struct {
	Port int `yaml:"port"`
}

// SyncConfig configures the scheduled ledger sync job.
type SyncConfig struct {
	Enabled bool `yaml:"enabled"`
	// Cron is a standard 5-field cron spec. Default runs nightly at 03:00.
	Cron string `yaml:"cron"`
	// LookbackDays is how far back the sync mission reaches.
	LookbackDays int `yaml:"lookbackDays"`
}

// Config is the root configuration object.
type Config struct {
	Workspace string         `yaml:"workspace"`
	LLM       LLMConfig      `yaml:"llm"`
	Agents    AgentDefaults  `yaml:"agents"`
	Tools     ToolsConfig    `yaml:"tools"`
	Channels  ChannelsConfig `yaml:"channels"`
	Gateway   GatewayConfig  `yaml:"gateway"`
	Sync      SyncConfig     `yaml:"sync"`
}

// DefaultConfig returns the built-in defaults. The loop bound and invoke
// timeout are conservative and overridable.
func DefaultConfig() Config {
	return Config{
		Workspace: "~/.lessonmate/workspace",
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			APIKey:   os.Getenv("GEMINI_API_KEY"),
		},
		Agents: AgentDefaults{
			MaxTokens:    8192,
			Temperature:  0.3,
			MaxToolIter:  10,
			MemoryWindow: 20,
		},
		Tools: ToolsConfig{
			Stock:                ToolProviderConfig{Command: "stocktools"},
			Schedule:             ToolProviderConfig{Command: "scheduletools"},
			Work:                 ToolProviderConfig{Command: "worktools"},
			InvokeTimeoutSeconds: 30,
		},
		Gateway: GatewayConfig{Port: 8790},
		Sync: SyncConfig{
			Enabled:      true,
			Cron:         "0 3 * * *",
			LookbackDays: 31,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lessonmate/config.yaml"
	}
	return filepath.Join(home, ".lessonmate", "config.yaml")
}

// WorkspacePath returns the workspace directory with ~ expanded.
func (c *Config) WorkspacePath() string {
	return expandHome(c.Workspace)
}

// LedgerPath is the payment ledger CSV inside the workspace.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.WorkspacePath(), "lessons.csv")
}

// CalendarPath is the calendar event store inside the workspace.
func (c *Config) CalendarPath() string {
	return filepath.Join(c.WorkspacePath(), "calendar.json")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}
