// Package config loads and validates VoxFlow configuration.
//
// Configuration is read from a YAML file with environment variable
// expansion, so secrets can be supplied as ${OPENAI_API_KEY} style
// references rather than inline values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for VoxFlow.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Telephony TelephonyConfig `yaml:"telephony"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP webhook/observability server.
type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`

	// PublicURL is the externally reachable base URL used when
	// registering telephony webhooks (e.g. an ngrok or LB address).
	PublicURL string `yaml:"public_url"`
}

// DatabaseConfig configures call-record persistence.
type DatabaseConfig struct {
	// Path is the SQLite database file. Empty selects the in-memory store.
	Path string `yaml:"path"`
}

// TelephonyConfig configures the telephony provider.
type TelephonyConfig struct {
	Provider   string `yaml:"provider"`
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`

	// ValidateSignatures toggles webhook signature verification.
	// Disable only for local development behind a tunnel.
	ValidateSignatures bool `yaml:"validate_signatures"`
}

// OpenAIConfig configures the speech and dialogue providers.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the API endpoint (optional, for proxies).
	BaseURL string `yaml:"base_url"`

	// ChatModel generates conversational replies. Default: "gpt-4o"
	ChatModel string `yaml:"chat_model"`

	// AnalysisModel classifies intent and produces summaries.
	// A faster model than ChatModel is usually sufficient.
	// Default: "gpt-4o-mini"
	AnalysisModel string `yaml:"analysis_model"`

	// WhisperModel transcribes caller audio. Default: "whisper-1"
	WhisperModel string `yaml:"whisper_model"`

	// TTSModel synthesizes replies. Default: "tts-1-hd"
	TTSModel string `yaml:"tts_model"`

	// Voice is the TTS voice profile. Default: "nova"
	Voice string `yaml:"voice"`

	// Speed is the TTS playback speed (0.25 to 4.0). Default: 0.9
	Speed float64 `yaml:"speed"`
}

// SessionConfig tunes the call-session orchestration engine.
type SessionConfig struct {
	// MaxErrors is the number of recoverable pipeline failures allowed
	// before a call is force-terminated. Default: 3
	MaxErrors int `yaml:"max_errors"`

	// LockTimeout bounds how long an event waits for the per-call lock.
	// Default: 30s
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// SweepInterval is how often the idle sweeper scans the registry.
	// Default: 5m
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// IdleTimeout is the inactivity threshold after which a session is
	// force-terminated with reason "timeout". Default: 30m
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// HistoryWindow is the number of recent turns passed to the dialogue
	// provider when generating a reply. Default: 10
	HistoryWindow int `yaml:"history_window"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error". Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json"
	Format string `yaml:"format"`
}

// Load reads the configuration file at path, expands environment
// variables, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills in zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Telephony.Provider == "" {
		c.Telephony.Provider = "twilio"
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = "gpt-4o"
	}
	if c.OpenAI.AnalysisModel == "" {
		c.OpenAI.AnalysisModel = "gpt-4o-mini"
	}
	if c.OpenAI.WhisperModel == "" {
		c.OpenAI.WhisperModel = "whisper-1"
	}
	if c.OpenAI.TTSModel == "" {
		c.OpenAI.TTSModel = "tts-1-hd"
	}
	if c.OpenAI.Voice == "" {
		c.OpenAI.Voice = "nova"
	}
	if c.OpenAI.Speed == 0 {
		c.OpenAI.Speed = 0.9
	}
	if c.Session.MaxErrors == 0 {
		c.Session.MaxErrors = 3
	}
	if c.Session.LockTimeout == 0 {
		c.Session.LockTimeout = 30 * time.Second
	}
	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = 5 * time.Minute
	}
	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = 30 * time.Minute
	}
	if c.Session.HistoryWindow == 0 {
		c.Session.HistoryWindow = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", c.Server.HTTPPort)
	}
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.OpenAI.Speed < 0.25 || c.OpenAI.Speed > 4.0 {
		return fmt.Errorf("openai.speed %.2f out of range (0.25 to 4.0)", c.OpenAI.Speed)
	}
	if c.Telephony.Provider != "twilio" && c.Telephony.Provider != "mock" {
		return fmt.Errorf("unknown telephony provider %q", c.Telephony.Provider)
	}
	if c.Telephony.Provider == "twilio" {
		if c.Telephony.AccountSID == "" || c.Telephony.AuthToken == "" {
			return fmt.Errorf("telephony.account_sid and telephony.auth_token are required for twilio")
		}
	}
	if c.Session.MaxErrors < 1 {
		return fmt.Errorf("session.max_errors must be at least 1")
	}
	if c.Session.IdleTimeout <= c.Session.SweepInterval {
		return fmt.Errorf("session.idle_timeout must exceed session.sweep_interval")
	}
	if c.Session.HistoryWindow < 1 {
		return fmt.Errorf("session.history_window must be at least 1")
	}
	return nil
}
