// Package zerrors defines the typed error taxonomy shared by every zephyr
// component: manifest parsing, graph resolution, scanning, git transport,
// filesystem operations and policy decisions. Each type carries the fields
// a caller needs to act on the failure; string formatting is kept minimal
// here and left to internal/errmsg for the human-facing presentation.
package zerrors

import "fmt"

// ParseErrorKind enumerates Manifest Parser failure modes.
type ParseErrorKind string

const (
	FileNotFound  ParseErrorKind = "file_not_found"
	FileReadError ParseErrorKind = "file_read_error"
	TomlParseErr  ParseErrorKind = "toml_parse_error"
	InvalidSchema ParseErrorKind = "invalid_schema"
)

// ParseError reports a Manifest Parser failure. It is never fatal to
// discovery: the offending module is dropped and the caller decides
// whether to surface it.
type ParseError struct {
	Kind ParseErrorKind
	File string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.File, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.File)
}

func (e *ParseError) Unwrap() error { return e.Err }

// GraphError reports a Module Graph Builder failure. Both variants are
// fatal to the resolve operation that produced them.
type GraphError struct {
	MissingDeps []MissingRequiredDep
	Cycle       *CircularDep
}

// MissingRequiredDep names a required dependency that no discovered,
// platform-compatible module satisfies.
type MissingRequiredDep struct {
	Module string
	Dep    string
}

// CircularDep names every module participating in a dependency cycle.
type CircularDep struct {
	Members []string
}

func (e *GraphError) Error() string {
	switch {
	case len(e.MissingDeps) > 0:
		s := fmt.Sprintf("%d missing required dependencies: ", len(e.MissingDeps))
		for i, md := range e.MissingDeps {
			if i > 0 {
				s += ", "
			}
			s += fmt.Sprintf("%s requires %s", md.Module, md.Dep)
		}
		return s
	case e.Cycle != nil:
		return fmt.Sprintf("circular dependency: %v", e.Cycle.Members)
	default:
		return "graph error"
	}
}

// NewMissingDepsError builds a GraphError for one or more missing
// required dependencies, surfaced together rather than stopping at the
// first one found.
func NewMissingDepsError(deps []MissingRequiredDep) *GraphError {
	return &GraphError{MissingDeps: deps}
}

// NewCircularDepError builds a GraphError for a dependency cycle.
func NewCircularDepError(members []string) *GraphError {
	return &GraphError{Cycle: &CircularDep{Members: members}}
}

// ScanErrorKind enumerates Security Scanner infrastructure failures (not
// findings — findings are PolicyBlock territory).
type ScanErrorKind string

const (
	ScanIOError       ScanErrorKind = "io_error"
	ScanTimeout       ScanErrorKind = "timeout"
	ScanTooManyFiles  ScanErrorKind = "too_many_files"
)

// ScanError reports a scanner infrastructure failure. Exit code 3. No
// findings produced alongside a ScanError may be trusted.
type ScanError struct {
	Kind ScanErrorKind
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("scan %s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("scan %s: %v", e.Kind, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// PolicyReason enumerates why the install pipeline refused to proceed
// based on a scan verdict or actor role.
type PolicyReason string

const (
	CriticalFindings            PolicyReason = "critical_findings"
	WarningsRequireConfirmation PolicyReason = "warnings_require_confirmation"
	AgentForbidden              PolicyReason = "agent_forbidden"
)

// PolicyBlock reports that the install or update pipeline stopped because
// of a policy decision rather than an infrastructure failure. Fatal to the
// operation; an audit record is always written alongside it.
type PolicyBlock struct {
	Reason  PolicyReason
	Detail  string
	Module  string
}

func (e *PolicyBlock) Error() string {
	return fmt.Sprintf("blocked (%s): %s: %s", e.Reason, e.Module, e.Detail)
}

// GitErrorKind enumerates git transport failures.
type GitErrorKind string

const (
	CloneFailed GitErrorKind = "clone_failed"
	FetchFailed GitErrorKind = "fetch_failed"
	PullFailed  GitErrorKind = "pull_failed"
	ResetFailed GitErrorKind = "reset_failed"
	InvalidURL  GitErrorKind = "invalid_url"
)

// GitError reports a git transport failure. Fatal to the operation; the
// caller is responsible for removing any temp directory it created.
type GitError struct {
	Kind GitErrorKind
	URL  string
	Err  error
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *GitError) Unwrap() error { return e.Err }

// FSErrorKind enumerates filesystem failures during install/uninstall.
type FSErrorKind string

const (
	PermissionDenied FSErrorKind = "permission_denied"
	TargetExists     FSErrorKind = "target_exists"
	MoveFailed       FSErrorKind = "move_failed"
)

// FSError reports a filesystem failure. Fatal to install/uninstall.
type FSError struct {
	Kind FSErrorKind
	Path string
	Err  error
}

func (e *FSError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fs %s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("fs %s: %s", e.Kind, e.Path)
}

func (e *FSError) Unwrap() error { return e.Err }
