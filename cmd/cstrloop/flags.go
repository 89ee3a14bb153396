package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// Agent selector values for the -agent flag.
const (
	agentReactor    = "reactor"
	agentController = "controller"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	Agent           string
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.Agent, "agent",
		getEnv("CSTRLOOP_AGENT", ""),
		"Agent to run: reactor, controller (env: CSTRLOOP_AGENT)")

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("CSTRLOOP_CONFIG", ""),
		"Path to configuration file, empty for built-in defaults (env: CSTRLOOP_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("CSTRLOOP_CONFIG", ""),
		"Path to configuration file, empty for built-in defaults (env: CSTRLOOP_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("CSTRLOOP_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: CSTRLOOP_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("CSTRLOOP_LOG_FORMAT", "json"),
		"Log format: json, text (env: CSTRLOOP_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("CSTRLOOP_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: CSTRLOOP_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.Agent != agentReactor && cfg.Agent != agentController {
		return fmt.Errorf("agent must be %q or %q, got %q", agentReactor, agentController, cfg.Agent)
	}

	// Validate config file exists when one was given
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive: %v", cfg.ShutdownTimeout)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Closed-loop CSTR process control over JetStream

Usage: %s -agent=<reactor|controller> [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run the simulation side of the loop
  %s -agent=reactor --config=configs/example.json

  # Run the control side with debug logging
  %s -agent=controller --log-level=debug --log-format=text

  # Run with environment variables
  export CSTRLOOP_AGENT=reactor
  export CSTRLOOP_CONFIG=/etc/cstrloop/config.json
  %s

  # Validate configuration only
  %s -agent=reactor --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
