// Package config holds the engine's global thresholds and the
// user-editable RehoboamConfig loaded from ~/.config/rehoboam/config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Global thresholds. Named constants, never spread as literals through the
// engine.
const (
	// MaxAgents caps the fleet-state agent map; the oldest waiting agent is
	// evicted before this limit is exceeded.
	MaxAgents = 500
	// MaxEvents caps the recent-events ring kept for the status surface.
	MaxEvents = 50
	// MaxSparklinePoints caps the per-agent activity ring.
	MaxSparklinePoints = 60
	// WaitingTimeoutSecs is how long a Working agent with no pending tool and
	// no open response window may go unseen before tick() marks it Waiting.
	WaitingTimeoutSecs = 60
	// StaleTimeoutSecs is how long an agent may go unseen before tick()
	// removes it entirely.
	StaleTimeoutSecs = 300
	// OrphanedToolTimeoutSecs is how long a reconciler will tolerate a
	// dangling current_tool on an "uncertain" agent before clearing it.
	OrphanedToolTimeoutSecs = 120
	// OrphanedResponseTimeoutSecs is the same, for a dangling in_response flag.
	OrphanedResponseTimeoutSecs = 60
	// AutoGuardrailThreshold is the occurrence count of a normalized error
	// pattern that triggers an auto-appended guardrail.
	AutoGuardrailThreshold = 3
	// MaxConnections caps concurrent ingress connections (Unix socket).
	MaxConnections = 100
)

// RehoboamConfig is the user-editable configuration file, following the
// load-with-graceful-fallback shape of the config this engine was modeled on:
// a missing or malformed file is not fatal, it just falls back to defaults.
type RehoboamConfig struct {
	Sandboxes SandboxesConfig `toml:"sandboxes"`
	Judge     JudgeConfig     `toml:"judge"`
}

// JudgeConfig configures the optional Anthropic-backed second opinion the
// loop controller consults before force-completing a loop on max iterations.
// Disabled by default: the stop-word/promise-tag/planning-complete checks
// are sufficient for most loops.
type JudgeConfig struct {
	Enabled        bool   `toml:"enabled"`
	APIKeyEnv      string `toml:"api_key_env"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	MaxTokens      int    `toml:"max_tokens"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func defaultJudgeConfig() JudgeConfig {
	return JudgeConfig{
		Enabled:        false,
		APIKeyEnv:      "ANTHROPIC_API_KEY",
		Model:          "claude-3-5-haiku-latest",
		MaxTokens:      256,
		TimeoutSeconds: 30,
	}
}

// SandboxesConfig controls the optional remote-sandbox (sprite) integration.
type SandboxesConfig struct {
	Enabled        bool              `toml:"enabled"`
	DefaultRegion  string            `toml:"default_region"`
	DefaultRAMMB   uint32            `toml:"default_ram_mb"`
	DefaultCPUs    uint32            `toml:"default_cpus"`
	NetworkPreset  NetworkPreset     `toml:"network_preset"`
	WebSocketPort  uint16            `toml:"ws_port"`
	Checkpoints    CheckpointsConfig `toml:"checkpoints"`
}

// NetworkPreset selects the egress policy applied to a spawned sandbox.
type NetworkPreset string

const (
	NetworkFull       NetworkPreset = "full"
	NetworkClaudeOnly NetworkPreset = "claude-only"
	NetworkRestricted NetworkPreset = "restricted"
)

// CheckpointsConfig controls automatic git checkpointing of sandbox state.
type CheckpointsConfig struct {
	AutoCheckpoint   bool   `toml:"auto_checkpoint"`
	IntervalMinutes  uint32 `toml:"interval_minutes"`
}

func defaultSandboxesConfig() SandboxesConfig {
	return SandboxesConfig{
		Enabled:       false,
		DefaultRegion: "iad",
		DefaultRAMMB:  2048,
		DefaultCPUs:   2,
		NetworkPreset: NetworkFull,
		WebSocketPort: 9876,
		Checkpoints: CheckpointsConfig{
			AutoCheckpoint:  false,
			IntervalMinutes: 15,
		},
	}
}

// DefaultConfig returns a RehoboamConfig with every field at its documented
// default, the same value Load returns when no config file is present.
func DefaultConfig() RehoboamConfig {
	return RehoboamConfig{Sandboxes: defaultSandboxesConfig(), Judge: defaultJudgeConfig()}
}

// DefaultPath returns ~/.config/rehoboam/config.toml, falling back to a
// literal "~" prefix if the home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.config/rehoboam/config.toml"
	}
	return filepath.Join(home, ".config", "rehoboam", "config.toml")
}

// Load reads RehoboamConfig from DefaultPath, logging and falling back to
// defaults on any error.
func Load(logf func(format string, args ...any)) RehoboamConfig {
	return LoadFromPath(DefaultPath(), logf)
}

// LoadFromPath reads RehoboamConfig from an explicit path. A missing or
// unparseable file is not an error from the caller's perspective: it is
// logged via logf (nil is accepted, meaning "don't log") and defaults are
// returned.
func LoadFromPath(path string, logf func(format string, args ...any)) RehoboamConfig {
	log := logf
	if log == nil {
		log = func(string, ...any) {}
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log("[config] failed to read %s: %v, using defaults", path, err)
		}
		return cfg
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		log("[config] failed to parse %s: %v, using defaults", path, err)
		return DefaultConfig()
	}

	if cfg.Sandboxes.DefaultRegion == "" {
		cfg.Sandboxes = mergeSandboxDefaults(cfg.Sandboxes)
	}
	cfg.Judge = mergeJudgeDefaults(cfg.Judge)
	log("[config] loaded configuration from %s", path)
	return cfg
}

func mergeSandboxDefaults(s SandboxesConfig) SandboxesConfig {
	d := defaultSandboxesConfig()
	if s.DefaultRegion == "" {
		s.DefaultRegion = d.DefaultRegion
	}
	if s.DefaultRAMMB == 0 {
		s.DefaultRAMMB = d.DefaultRAMMB
	}
	if s.DefaultCPUs == 0 {
		s.DefaultCPUs = d.DefaultCPUs
	}
	if s.NetworkPreset == "" {
		s.NetworkPreset = d.NetworkPreset
	}
	if s.WebSocketPort == 0 {
		s.WebSocketPort = d.WebSocketPort
	}
	if s.Checkpoints.IntervalMinutes == 0 {
		s.Checkpoints.IntervalMinutes = d.Checkpoints.IntervalMinutes
	}
	return s
}

func mergeJudgeDefaults(j JudgeConfig) JudgeConfig {
	d := defaultJudgeConfig()
	if j.APIKeyEnv == "" {
		j.APIKeyEnv = d.APIKeyEnv
	}
	if j.Model == "" {
		j.Model = d.Model
	}
	if j.MaxTokens == 0 {
		j.MaxTokens = d.MaxTokens
	}
	if j.TimeoutSeconds == 0 {
		j.TimeoutSeconds = d.TimeoutSeconds
	}
	return j
}

// Validate reports a descriptive error for an unrecognized
// sandboxes.network_preset; no other field is checked.
func (c RehoboamConfig) Validate() error {
	switch c.Sandboxes.NetworkPreset {
	case NetworkFull, NetworkClaudeOnly, NetworkRestricted, "":
	default:
		return fmt.Errorf("config: unknown network_preset %q", c.Sandboxes.NetworkPreset)
	}
	return nil
}
