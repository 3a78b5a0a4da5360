// Package config loads jobbot's process configuration from the environment.
//
// Everything is read once at startup; changing a value requires a restart.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	TelegramToken string

	JobsDir   string
	HistoryDB string

	DefaultTimezone string

	SchedulerEnabled bool
	PollInterval     time.Duration
	AgentTimeout     time.Duration
	BusyMessage      string

	// AgentCommand is the runtime command line: prompt on stdin, reply on
	// stdout.
	AgentCommand []string

	RetryBase     time.Duration
	RetryMaxDelay time.Duration

	SkillsDir     string
	MCPConfigPath string

	LogLevel string
	LogFile  string
}

const (
	defaultTimezone    = "Asia/Tokyo"
	defaultBusyMessage = "いまジョブを実行中です。終わり次第対応します。"
)

// Load reads every JOBBOT_* variable, applies defaults, and validates
// the result. Invalid values fail startup with a precise message.
func Load() (*Config, error) {
	cfg := &Config{
		TelegramToken:   strings.TrimSpace(os.Getenv("JOBBOT_TELEGRAM_TOKEN")),
		JobsDir:         envOrDefault("JOBBOT_JOBS_DIR", "./jobs"),
		HistoryDB:       envOrDefault("JOBBOT_HISTORY_DB", "./jobbot.db"),
		DefaultTimezone: envOrDefault("JOBBOT_TIMEZONE", defaultTimezone),
		BusyMessage:     envOrDefault("JOBBOT_BUSY_MESSAGE", defaultBusyMessage),
		SkillsDir:       envOrDefault("JOBBOT_SKILLS_DIR", "./config/skills"),
		MCPConfigPath:   envOrDefault("JOBBOT_MCP_CONFIG", "./config/mcp.json"),
		LogLevel:        envOrDefault("JOBBOT_LOG_LEVEL", "info"),
		LogFile:         strings.TrimSpace(os.Getenv("JOBBOT_LOG_FILE")),
	}
	cfg.AgentCommand = strings.Fields(os.Getenv("JOBBOT_AGENT_CMD"))

	var err error
	if cfg.SchedulerEnabled, err = parseBoolOrDefault("JOBBOT_SCHEDULER_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = parseDurationOrDefault("JOBBOT_POLL_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.AgentTimeout, err = parseDurationOrDefault("JOBBOT_AGENT_TIMEOUT", 300*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryBase, err = parseDurationOrDefault("JOBBOT_RETRY_BASE", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryMaxDelay, err = parseDurationOrDefault("JOBBOT_RETRY_MAX_DELAY", time.Hour); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PollInterval < time.Second {
		return fmt.Errorf("JOBBOT_POLL_INTERVAL: must be >= 1s, got %s", c.PollInterval)
	}
	if c.RetryBase <= 0 {
		return fmt.Errorf("JOBBOT_RETRY_BASE: must be > 0")
	}
	if c.RetryMaxDelay < c.RetryBase {
		return fmt.Errorf("JOBBOT_RETRY_MAX_DELAY: must be >= JOBBOT_RETRY_BASE (%s)", c.RetryBase)
	}
	if strings.TrimSpace(c.DefaultTimezone) == "" {
		return fmt.Errorf("JOBBOT_TIMEZONE: must not be empty")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("JOBBOT_TIMEZONE: invalid %q: %w", c.DefaultTimezone, err)
	}
	if strings.TrimSpace(c.JobsDir) == "" {
		return fmt.Errorf("JOBBOT_JOBS_DIR: must not be empty")
	}
	if len(c.AgentCommand) == 0 {
		return fmt.Errorf("JOBBOT_AGENT_CMD: must name the agent runtime command")
	}
	return nil
}

func envOrDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func parseDurationOrDefault(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %q", key, raw)
	}
	return d, nil
}

func parseBoolOrDefault(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid bool %q", key, raw)
	}
	return v, nil
}
