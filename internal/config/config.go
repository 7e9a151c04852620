package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Agent   AgentConfig
	Live    LiveConfig
	Chat    ChatConfig
	Audit   AuditConfig
	Logging LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
}

// AgentConfig holds configuration for the remote escalation agent
type AgentConfig struct {
	BaseURL         string
	AuthToken       string
	Timeout         time.Duration
	ReasoningAPIKey string
	ReasoningModel  string
}

// LiveConfig holds live-channel configuration
type LiveConfig struct {
	Host        string
	AuthToken   string
	DemoMode    bool
	MaxAttempts int
	BackoffUnit time.Duration
}

// ChatConfig holds message session limits
type ChatConfig struct {
	MaxAttachments    int
	MaxAttachmentSize int64
	ReplyDelay        time.Duration
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	RetainedEntries int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Agent defaults
	v.SetDefault("agent.timeout", 15*time.Second)
	v.SetDefault("agent.reasoningmodel", "gpt-4o-mini")

	// Live channel defaults
	v.SetDefault("live.demomode", false)
	v.SetDefault("live.maxattempts", 3)
	v.SetDefault("live.backoffunit", 3*time.Second)

	// Chat defaults
	v.SetDefault("chat.maxattachments", 5)
	v.SetDefault("chat.maxattachmentsize", int64(10<<20))
	v.SetDefault("chat.replydelay", 2*time.Second)

	// Audit defaults
	v.SetDefault("audit.retainedentries", 256)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")

	// Escalation agent
	v.BindEnv("agent.baseurl", "AGENT_BASE_URL")
	v.BindEnv("agent.authtoken", "AGENT_AUTH_TOKEN")
	v.BindEnv("agent.timeout", "AGENT_TIMEOUT")
	v.BindEnv("agent.reasoningapikey", "AGENT_REASONING_API_KEY")
	v.BindEnv("agent.reasoningmodel", "AGENT_REASONING_MODEL")

	// Live channel
	v.BindEnv("live.host", "LIVE_HOST")
	v.BindEnv("live.authtoken", "LIVE_AUTH_TOKEN")
	v.BindEnv("live.demomode", "LIVE_DEMO_MODE")
	v.BindEnv("live.maxattempts", "LIVE_MAX_ATTEMPTS")
	v.BindEnv("live.backoffunit", "LIVE_BACKOFF_UNIT")

	// Chat
	v.BindEnv("chat.maxattachments", "CHAT_MAX_ATTACHMENTS")
	v.BindEnv("chat.maxattachmentsize", "CHAT_MAX_ATTACHMENT_SIZE")
	v.BindEnv("chat.replydelay", "CHAT_REPLY_DELAY")

	// Audit
	v.BindEnv("audit.retainedentries", "AUDIT_RETAINED_ENTRIES")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate required fields
	if c.Agent.BaseURL == "" {
		return fmt.Errorf("agent.baseurl is required")
	}

	if !c.Live.DemoMode && c.Live.Host == "" {
		return fmt.Errorf("live.host is required unless demo mode is enabled")
	}

	if c.Live.MaxAttempts < 1 {
		return fmt.Errorf("live.maxattempts must be at least 1")
	}

	if c.Chat.MaxAttachments < 1 {
		return fmt.Errorf("chat.maxattachments must be at least 1")
	}

	if c.Chat.MaxAttachmentSize < 1 {
		return fmt.Errorf("chat.maxattachmentsize must be positive")
	}

	return nil
}
