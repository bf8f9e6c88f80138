package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the phone receptionist service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Oracle settings. Provider is "gemini" or "mock".
	OracleProvider string
	GeminiAPIKey   string
	GeminiModel    string
	OracleTimeout  time.Duration
	MaxChainHops   int

	SystemInstructionFile string
	BusinessContextFile   string

	// All timestamps spoken with the caller live in this single zone.
	Timezone string

	DatabaseURL string

	GoogleCalendarID         string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	MirrorTimeout            time.Duration
	MirrorReconcileInterval  time.Duration
	SessionInactivityTimeout time.Duration

	TwilioVoice    string
	TwilioLanguage string
	GatherEndpoint string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "elena"),
		AllowAnyOrigin:           false,
		OracleProvider:           envOrDefault("ORACLE_PROVIDER", "gemini"),
		GeminiAPIKey:             trimmedEnv("GEMINI_API_KEY"),
		GeminiModel:              envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		SystemInstructionFile:    envOrDefault("SYSTEM_INSTRUCTION_FILE", "config/system_instruction.txt"),
		BusinessContextFile:      envOrDefault("BUSINESS_CONTEXT_FILE", "config/business_context.txt"),
		Timezone:                 envOrDefault("APP_TIMEZONE", "America/Argentina/Buenos_Aires"),
		DatabaseURL:              trimmedEnv("DATABASE_URL"),
		GoogleCalendarID:         trimmedEnv("GOOGLE_CALENDAR_ID"),
		GoogleServiceAccountFile: trimmedEnv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		GoogleServiceAccountJSON: trimmedEnv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		TwilioVoice:              envOrDefault("TWILIO_VOICE", "Polly.Mia"),
		TwilioLanguage:           envOrDefault("TWILIO_LANGUAGE", "es-MX"),
		GatherEndpoint:           envOrDefault("GATHER_ENDPOINT", "/twilio/gather"),
		ShutdownTimeout:          15 * time.Second,
		OracleTimeout:            30 * time.Second,
		MirrorTimeout:            10 * time.Second,
		MirrorReconcileInterval:  2 * time.Minute,
		SessionInactivityTimeout: 10 * time.Minute,
		MaxChainHops:             5,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.OracleTimeout, err = durationFromEnv("ORACLE_TIMEOUT", cfg.OracleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MirrorTimeout, err = durationFromEnv("MIRROR_TIMEOUT", cfg.MirrorTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MirrorReconcileInterval, err = durationFromEnv("MIRROR_RECONCILE_INTERVAL", cfg.MirrorReconcileInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxChainHops, err = intFromEnv("MAX_CHAIN_HOPS", cfg.MaxChainHops)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.OracleProvider)) {
	case "gemini", "mock":
	default:
		return Config{}, fmt.Errorf("invalid ORACLE_PROVIDER: %q (expected gemini|mock)", cfg.OracleProvider)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("APP_TIMEZONE parse error: %w", err)
	}
	if cfg.MaxChainHops <= 0 {
		return Config{}, fmt.Errorf("MAX_CHAIN_HOPS must be positive")
	}
	if cfg.OracleTimeout < time.Second {
		return Config{}, fmt.Errorf("ORACLE_TIMEOUT must be at least 1s")
	}
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.MirrorReconcileInterval < 10*time.Second {
		return Config{}, fmt.Errorf("MIRROR_RECONCILE_INTERVAL must be at least 10s")
	}

	return cfg, nil
}

// MirrorConfigured reports whether the external calendar mirror is set up.
// An entirely absent mirror is a valid configuration.
func (c Config) MirrorConfigured() bool {
	return c.GoogleCalendarID != "" &&
		(c.GoogleServiceAccountFile != "" || c.GoogleServiceAccountJSON != "")
}

// Location resolves the configured timezone. Load already validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
