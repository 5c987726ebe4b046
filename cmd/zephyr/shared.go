package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/zephyr-sh/zephyr/internal/audit"
	"github.com/zephyr-sh/zephyr/internal/config"
	"github.com/zephyr-sh/zephyr/internal/gitremote"
	"github.com/zephyr-sh/zephyr/internal/graph"
	"github.com/zephyr-sh/zephyr/internal/install"
	"github.com/zephyr-sh/zephyr/internal/manifest"
	"github.com/zephyr-sh/zephyr/internal/platform"
	"github.com/zephyr-sh/zephyr/internal/scanner"
	"github.com/zephyr-sh/zephyr/internal/session"
	"github.com/zephyr-sh/zephyr/internal/signing"
)

// moduleCache is shared across every command in one process invocation.
// It is process-local and guarded by graph.Cache's sync.Mutex, which is
// not re-entrant: a Cache method called while the lock is held deadlocks.
var moduleCache = graph.NewCache(0)

// loadConfig resolves zephyr's directory layout, exiting the caller's
// command with a generic failure if $HOME can't be determined.
func loadConfig() (*config.Config, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// discoverAndFilter runs discovery plus the platform filter against cfg's
// modules directory, returning drops and incompatibilities to the caller
// rather than treating them as errors, per the spec's "never aborts"
// contract.
func discoverAndFilter(cfg *config.Config) (compatible []*manifest.Module, dropped []graph.Dropped, incompatible []graph.Incompatible, err error) {
	mods, dropped, err := graph.Discover(cfg.ModulesDir, moduleCache)
	if err != nil {
		return nil, nil, nil, err
	}
	compatible, incompatible = graph.FilterCompatible(mods, platform.Detect())
	return compatible, dropped, incompatible, nil
}

// resolvedShell returns the --shell flag value if set, else the detected
// current shell.
func resolvedShell() string {
	if shellFlag != "" {
		return shellFlag
	}
	return platform.Detect().Shell
}

// buildInstaller assembles an Installer from the process-wide config,
// session identity, audit logger, trusted-module allowlist, and a real
// CLI git transport. A signing Verifier is attached only when a trust
// anchor key is configured, since signed-release installs are otherwise
// simply unavailable.
func buildInstaller(cfg *config.Config) *install.Installer {
	sess := session.Resolve()
	auditLogger := audit.NewLogger(cfg.AuditLogPath)
	trusted := scanner.LoadTrustedModules(cfg.TrustedFile)

	ins := &install.Installer{
		Config:  cfg,
		Git:     &gitremote.CLIGit{},
		Trusted: trusted,
		Audit:   auditLogger,
		Session: sess,
		Confirm: terminalConfirm,
		Cache:   moduleCache,
		GitHub:  gitremote.NewGitHubResolver(),
	}

	if key := signingTrustAnchor(cfg); key != "" {
		if v, err := signing.NewVerifier(key); err == nil {
			ins.Verifier = v
		}
	}

	return ins
}

// signingTrustAnchor resolves the armored public key used to verify
// signed releases, from $ZEPHYR_SIGNING_KEY or cfg.SecurityFile. Neither
// present means signed-release installs simply aren't available; that's
// not an error, since most users never install from one.
func signingTrustAnchor(cfg *config.Config) string {
	if key := os.Getenv("ZEPHYR_SIGNING_KEY"); key != "" {
		return key
	}
	data, err := os.ReadFile(cfg.SecurityFile + ".pubkey")
	if err != nil {
		return ""
	}
	return string(data)
}

// terminalConfirm asks stdin for a y/n answer. It is only ever reached
// for a human actor: an agent role without its own confirmation hook is
// rejected before this is invoked.
func terminalConfirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
