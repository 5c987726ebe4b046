// Package errmsg turns a zephyr error into the one-line title plus
// "Possible causes" / "Suggestions" block the CLI prints on stderr.
package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

// ErrorContext carries the detail Format needs to tailor a suggestion,
// such as which module or path was involved.
type ErrorContext struct {
	Module string
}

// Format returns a formatted error message with possible causes and
// suggestions. ctx is optional; pass nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}

	var parseErr *zerrors.ParseError
	if errors.As(err, &parseErr) {
		return formatParseError(parseErr, ctx)
	}

	var graphErr *zerrors.GraphError
	if errors.As(err, &graphErr) {
		return formatGraphError(graphErr, ctx)
	}

	var scanErr *zerrors.ScanError
	if errors.As(err, &scanErr) {
		return formatScanError(scanErr, ctx)
	}

	var policyErr *zerrors.PolicyBlock
	if errors.As(err, &policyErr) {
		return formatPolicyBlock(policyErr, ctx)
	}

	var gitErr *zerrors.GitError
	if errors.As(err, &gitErr) {
		return formatGitError(gitErr, ctx)
	}

	var fsErr *zerrors.FSError
	if errors.As(err, &fsErr) {
		return formatFSError(fsErr, ctx)
	}

	errMsg := err.Error()

	var netErr net.Error
	if errors.As(err, &netErr) {
		return formatNetworkError(netErr)
	}
	if isNetworkError(errMsg) {
		return formatGenericNetworkError(errMsg)
	}

	return errMsg
}

func formatParseError(e *zerrors.ParseError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")

	switch e.Kind {
	case zerrors.FileNotFound:
		sb.WriteString("  - module.toml is missing from the module directory\n")
		sb.WriteString("  - The path passed to zephyr does not point at a module\n")
	case zerrors.FileReadError:
		sb.WriteString("  - Insufficient permissions to read module.toml\n")
		sb.WriteString("  - The file was removed or replaced mid-scan\n")
	case zerrors.TomlParseErr:
		sb.WriteString("  - Malformed TOML syntax in module.toml\n")
		sb.WriteString("  - A string value is missing its closing quote\n")
	case zerrors.InvalidSchema:
		sb.WriteString("  - The required [module].name field is missing\n")
		sb.WriteString("  - [module].name is over 50 characters or not of the form [A-Za-z][A-Za-z0-9_-]*\n")
	}

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString(fmt.Sprintf("  - Inspect %s directly\n", e.File))
	sb.WriteString("  - Run 'zephyr validate' to see every malformed module at once\n")

	return sb.String()
}

func formatGraphError(e *zerrors.GraphError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")

	switch {
	case len(e.MissingDeps) > 0:
		sb.WriteString("  - The dependency module was never installed\n")
		sb.WriteString("  - The dependency is incompatible with the current platform\n")
		sb.WriteString("  - The dependency name in [dependencies].required is misspelled\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString(fmt.Sprintf("  - Install the missing module: zephyr install <source-for-%s>\n", e.MissingDeps[0].Dep))
		sb.WriteString("  - Run 'zephyr list' to see what's already discovered\n")
	case e.Cycle != nil:
		sb.WriteString("  - Two or more modules require each other, directly or transitively\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Break the cycle by removing one of the [dependencies].required entries\n")
		sb.WriteString("  - Mark one side of the cycle as an 'optional' dependency instead\n")
	}

	return sb.String()
}

func formatScanError(e *zerrors.ScanError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")

	switch e.Kind {
	case zerrors.ScanTimeout:
		sb.WriteString("  - The module tree is unusually large\n")
		sb.WriteString("  - Slow filesystem (network mount, container overlay)\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Increase ZEPHYR_SCAN_TIMEOUT_SECONDS\n")
	case zerrors.ScanTooManyFiles:
		sb.WriteString("  - The module tree exceeds the configured file-count limit\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Verify the source isn't shipping a build tree or vendored dependencies\n")
	default:
		sb.WriteString("  - Permission denied walking part of the tree\n")
		sb.WriteString("  - The directory was modified mid-scan\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Re-run the scan; no findings from a failed scan are trusted\n")
	}

	return sb.String()
}

func formatPolicyBlock(e *zerrors.PolicyBlock, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")

	switch e.Reason {
	case zerrors.CriticalFindings:
		sb.WriteString("  - The scanner found a pattern matching a critical severity family\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Run 'zephyr scan <path>' to see the full finding list\n")
		sb.WriteString("  - If the finding is a false positive, add the module to trusted_modules.toml\n")
	case zerrors.WarningsRequireConfirmation:
		sb.WriteString("  - The scanner found warning-severity patterns and no confirmation was given\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Re-run with --yes after reviewing the findings\n")
	case zerrors.AgentForbidden:
		sb.WriteString("  - The current actor role is 'agent' and this operation requires a human\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Re-run the command as a human operator (unset ZEPHYR_ACTOR_ROLE)\n")
	}

	return sb.String()
}

func formatGitError(e *zerrors.GitError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")

	switch e.Kind {
	case zerrors.InvalidURL:
		sb.WriteString("  - The install source isn't a recognized git URL or GitHub shorthand\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Use GitHub shorthand (owner/repo), a full https:// URL, or git@host:owner/repo.git\n")
	default:
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - The repository is private and no credentials are configured\n")
		sb.WriteString("  - The ref does not exist in the remote\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check your internet connection\n")
		sb.WriteString("  - Set GITHUB_TOKEN for access to private repositories\n")
	}

	return sb.String()
}

func formatFSError(e *zerrors.FSError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")

	switch e.Kind {
	case zerrors.PermissionDenied:
		sb.WriteString("  - Insufficient permissions on the zephyr home directory\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check ownership: ls -la ~/.zephyr\n")
	case zerrors.TargetExists:
		sb.WriteString("  - A module with this name is already installed\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Run 'zephyr update <name>' instead of install\n")
		sb.WriteString("  - Uninstall the existing module first\n")
	case zerrors.MoveFailed:
		sb.WriteString("  - The destination and staging directory are on different filesystems\n")
		sb.WriteString("  - A concurrent process holds the destination path open\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Ensure ZSH_MODULES_DIR and the zephyr temp directory share a filesystem\n")
	}

	return sb.String()
}

func formatNetworkError(err net.Error) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n\nPossible causes:\n")
	if err.Timeout() {
		sb.WriteString("  - Request timed out\n")
	} else {
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - DNS resolution failure\n")
	}
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")
	return sb.String()
}

func formatGenericNetworkError(errMsg string) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - Network connectivity issue\n")
	sb.WriteString("  - Service temporarily unavailable\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")
	return sb.String()
}

func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "i/o timeout")
}
