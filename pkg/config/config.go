// Package config loads orchestrator configuration from the environment.
package config

import (
	"os"
	"strconv"
)

// Config holds process-level settings for the orchestrator core.
// Database settings live in pkg/storage; HTTP settings in pkg/api.
type Config struct {
	// AgentLogDir is the root directory for per-agent JSONL logs.
	AgentLogDir string
	// AgentLoggingEnabled toggles per-agent file logging.
	AgentLoggingEnabled bool
	// Model is the default model id for new agents.
	Model string
	// WorkingDirectory is the default working directory for agents.
	WorkingDirectory string
	// AnthropicAPIKey overrides the SDK's environment-based key lookup.
	AnthropicAPIKey string
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		AgentLogDir:         getEnvOrDefault("AGENT_LOG_DIR", "./agent_logs"),
		AgentLoggingEnabled: getBoolOrDefault("ENABLE_AGENT_LOGGING", true),
		Model:               os.Getenv("ANTHROPIC_MODEL"),
		WorkingDirectory:    os.Getenv("AGENT_WORKING_DIR"),
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}
