// Package config resolves zephyr's directory layout and environment-driven
// tunables, following the same "parse, validate range, warn and fall back"
// pattern throughout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// EnvModulesDir overrides the module discovery root.
	EnvModulesDir = "ZSH_MODULES_DIR"

	// EnvScanTimeout overrides the scanner wall-clock timeout, in seconds.
	EnvScanTimeout = "ZEPHYR_SCAN_TIMEOUT_SECONDS"

	// EnvHTTPTimeout overrides the HTTP GET timeout, in seconds.
	EnvHTTPTimeout = "ZEPHYR_HTTP_TIMEOUT_SECONDS"

	// EnvGitCloneTimeout overrides the git clone timeout, in seconds.
	EnvGitCloneTimeout = "ZEPHYR_GIT_TIMEOUT_SECONDS"

	// EnvSessionID identifies the current session for audit records.
	EnvSessionID = "ZEPHYR_SESSION_ID"

	// EnvActorRole overrides actor-role detection (user, agent).
	EnvActorRole = "ZEPHYR_ACTOR_ROLE"

	// DefaultScanTimeout is the scanner's default wall-clock budget.
	DefaultScanTimeout = 30 * time.Second

	// DefaultHTTPTimeout is the default HTTP GET timeout.
	DefaultHTTPTimeout = 10 * time.Second

	// DefaultGitCloneTimeout is the default git clone timeout.
	DefaultGitCloneTimeout = 60 * time.Second

	minTimeout = 1 * time.Second
	maxTimeout = 30 * time.Minute
)

// getTimeoutSeconds reads an integer-seconds env var, validates it against
// [minTimeout, maxTimeout], and falls back to def on absence or bad input.
func getTimeoutSeconds(envVar string, def time.Duration) time.Duration {
	envValue := os.Getenv(envVar)
	if envValue == "" {
		return def
	}

	d, err := time.ParseDuration(envValue + "s")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n", envVar, envValue, def)
		return def
	}

	if d < minTimeout {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum %v\n", envVar, d, minTimeout)
		return minTimeout
	}
	if d > maxTimeout {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum %v\n", envVar, d, maxTimeout)
		return maxTimeout
	}

	return d
}

// GetScanTimeout returns the scanner's wall-clock budget from
// ZEPHYR_SCAN_TIMEOUT_SECONDS, or DefaultScanTimeout.
func GetScanTimeout() time.Duration {
	return getTimeoutSeconds(EnvScanTimeout, DefaultScanTimeout)
}

// GetHTTPTimeout returns the HTTP GET timeout from
// ZEPHYR_HTTP_TIMEOUT_SECONDS, or DefaultHTTPTimeout.
func GetHTTPTimeout() time.Duration {
	return getTimeoutSeconds(EnvHTTPTimeout, DefaultHTTPTimeout)
}

// GetGitCloneTimeout returns the git clone timeout from
// ZEPHYR_GIT_TIMEOUT_SECONDS, or DefaultGitCloneTimeout.
func GetGitCloneTimeout() time.Duration {
	return getTimeoutSeconds(EnvGitCloneTimeout, DefaultGitCloneTimeout)
}

// DefaultModulesDirOverride lets the binary's main package change the
// default modules directory (e.g. dev builds under ldflags).
// ZSH_MODULES_DIR still takes precedence.
var DefaultModulesDirOverride string

// Config holds zephyr's resolved paths.
type Config struct {
	ModulesDir   string // $ZSH_MODULES_DIR, default $HOME/.zsh/modules
	HomeDir      string // $HOME/.zephyr
	AuditDir     string // $HOME/.zephyr/audit/operations
	TrustedFile  string // $HOME/.zephyr/trusted_modules.toml
	SecurityFile string // $HOME/.zephyr/security.toml
}

// DefaultConfig resolves zephyr's directory layout from the environment.
func DefaultConfig() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	modulesDir := os.Getenv(EnvModulesDir)
	if modulesDir == "" {
		if DefaultModulesDirOverride != "" {
			modulesDir = DefaultModulesDirOverride
		} else {
			modulesDir = filepath.Join(home, ".zsh", "modules")
		}
	}

	zephyrHome := filepath.Join(home, ".zephyr")

	return &Config{
		ModulesDir:   modulesDir,
		HomeDir:      zephyrHome,
		AuditDir:     filepath.Join(zephyrHome, "audit", "operations"),
		TrustedFile:  filepath.Join(zephyrHome, "trusted_modules.toml"),
		SecurityFile: filepath.Join(zephyrHome, "security.toml"),
	}, nil
}

// EnsureDirectories creates every directory the config needs, idempotently.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ModulesDir, c.HomeDir, c.AuditDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// AuditLogPath returns the append-only NDJSON audit log path for the given
// day, named <YYYYMMDD>.log under AuditDir.
func (c *Config) AuditLogPath(day time.Time) string {
	return filepath.Join(c.AuditDir, day.Format("20060102")+".log")
}
