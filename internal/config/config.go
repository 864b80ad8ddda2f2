// Package config loads and validates the fleet supervisor's configuration
// from the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const maxSessions = 7

// IpRotationConfig describes the scheduled public-IP rotation.
type IpRotationConfig struct {
	// RotationTime is the raw IP_ROTATION_TIME value: "HH:MM", an
	// integer number of minutes, or "0" to disable rotation.
	RotationTime string
	// WaitSeconds is the quiescence window between the down-phase and
	// the up-phase of a rotation.
	WaitSeconds int
}

// Disabled reports whether rotation is turned off ("0").
func (c IpRotationConfig) Disabled() bool {
	return c.RotationTime == "0"
}

// AppConfig is the immutable, validated configuration record the
// supervisor and its background loops are built from.
type AppConfig struct {
	PPPoEUsername string
	PPPoEPassword string
	SessionCount  int

	Rotation IpRotationConfig

	HealthCheckEnabled   bool
	HealthCheckInterval  int
	HealthCheckThreshold int
	HealthCheckTarget    string

	Gateway string

	DiscordToken   string
	DiscordGuildID string

	GostLogLevel  string
	ProxyVerbose  bool
	LogLevel      string

	// DryRun skips every external-program invocation (pppd, ip, nft,
	// ping, ./gost), logging each would-be call instead. Grounded on
	// original_source/jeffpeng3-pppoe-socks's DRY_RUN env var, which
	// gates the same set of calls in core/config.rs/main.rs for safe
	// local testing; spec.md/the initial distillation dropped it.
	DryRun bool
}

// Load reads an optional .env file and then the process environment,
// returning a validated AppConfig or a ConfigError describing the first
// problem found.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, &ConfigError{Field: ".env", Msg: err.Error()}
	}
	return FromEnviron(os.Environ())
}

// FromEnviron builds an AppConfig from a slice of "KEY=VALUE" strings,
// as returned by os.Environ. Exposed separately from Load so tests can
// exercise validation without touching the real environment.
func FromEnviron(environ []string) (*AppConfig, error) {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	get := func(k string) string { return env[k] }

	cfg := &AppConfig{
		PPPoEUsername: get("PPPOE_USERNAME"),
		PPPoEPassword: get("PPPOE_PASSWORD"),
		Gateway:       get("GATEWAY"),
		DiscordToken:  get("DISCORD_TOKEN"),
		DiscordGuildID: get("DISCORD_GUILD_ID"),
		GostLogLevel:  orDefault(get("GOST_LOG_LEVEL"), "warn"),
		LogLevel:      get("LOG_LEVEL"),
	}

	if cfg.PPPoEUsername == "" {
		return nil, &ConfigError{Field: "PPPOE_USERNAME", Msg: "required"}
	}
	if cfg.PPPoEPassword == "" {
		return nil, &ConfigError{Field: "PPPOE_PASSWORD", Msg: "required"}
	}
	if cfg.Gateway == "" {
		return nil, &ConfigError{Field: "GATEWAY", Msg: "required"}
	}
	if cfg.DiscordToken == "" {
		return nil, &ConfigError{Field: "DISCORD_TOKEN", Msg: "required"}
	}

	sessionCount, err := parseIntDefault(get("PPPOE_SESSION_COUNT"), 1)
	if err != nil {
		return nil, &ConfigError{Field: "PPPOE_SESSION_COUNT", Msg: err.Error()}
	}
	if sessionCount < 1 || sessionCount > maxSessions {
		return nil, &ConfigError{Field: "PPPOE_SESSION_COUNT", Msg: fmt.Sprintf("must be in [1, %d]", maxSessions)}
	}
	cfg.SessionCount = sessionCount

	rotationTime := get("IP_ROTATION_TIME")
	if rotationTime == "" {
		return nil, &ConfigError{Field: "IP_ROTATION_TIME", Msg: "required"}
	}
	if _, err := strconv.Atoi(rotationTime); err != nil {
		if _, err := time.Parse("15:04", rotationTime); err != nil {
			return nil, &ConfigError{Field: "IP_ROTATION_TIME", Msg: `must be "HH:MM", integer minutes, or "0"`}
		}
	}
	waitSeconds, err := parseIntDefault(get("IP_ROTATION_WAIT_SECONDS"), -1)
	if err != nil || waitSeconds < 0 {
		return nil, &ConfigError{Field: "IP_ROTATION_WAIT_SECONDS", Msg: "required non-negative integer"}
	}
	cfg.Rotation = IpRotationConfig{RotationTime: rotationTime, WaitSeconds: waitSeconds}

	cfg.HealthCheckEnabled, err = parseBoolDefault(get("HEALTH_CHECK_ENABLED"), true)
	if err != nil {
		return nil, &ConfigError{Field: "HEALTH_CHECK_ENABLED", Msg: err.Error()}
	}
	cfg.HealthCheckInterval, err = parseIntDefault(get("HEALTH_CHECK_INTERVAL"), 30)
	if err != nil || cfg.HealthCheckInterval <= 0 {
		return nil, &ConfigError{Field: "HEALTH_CHECK_INTERVAL", Msg: "must be a positive integer"}
	}
	cfg.HealthCheckThreshold, err = parseIntDefault(get("HEALTH_CHECK_THRESHOLD"), 3)
	if err != nil || cfg.HealthCheckThreshold <= 0 {
		return nil, &ConfigError{Field: "HEALTH_CHECK_THRESHOLD", Msg: "must be a positive integer"}
	}
	cfg.HealthCheckTarget = orDefault(get("HEALTH_CHECK_TARGET"), "8.8.8.8")

	cfg.ProxyVerbose, err = parseBoolDefault(get("PROXY_VERBOSE"), false)
	if err != nil {
		return nil, &ConfigError{Field: "PROXY_VERBOSE", Msg: err.Error()}
	}

	cfg.DryRun, err = parseBoolDefault(get("DRY_RUN"), false)
	if err != nil {
		return nil, &ConfigError{Field: "DRY_RUN", Msg: err.Error()}
	}

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseIntDefault(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func parseBoolDefault(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", v)
	}
}

// ConfigError is a fatal, startup-time configuration problem (§7).
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}
