// Package session resolves the identity of the caller driving the current
// operation: a session id for audit correlation, and a role that gates
// which install-pipeline behaviors are permitted.
package session

import (
	"os"

	"golang.org/x/term"

	"github.com/zephyr-sh/zephyr/internal/config"
)

// Role classifies the actor invoking zephyr. Agent callers are subject to
// stricter policy: no --unsafe, no unsigned signed-release installs, and
// a required confirmation hook before anything destructive.
type Role string

const (
	RoleUser    Role = "user"
	RoleAgent   Role = "agent"
	RoleUnknown Role = "unknown"
)

// IsTerminalFunc is the TTY probe used to infer a role when
// ZEPHYR_ACTOR_ROLE is unset. Overridable for tests.
var IsTerminalFunc = term.IsTerminal

// Info is the resolved identity for the current process.
type Info struct {
	SessionID string
	Role      Role
}

// Resolve reads ZEPHYR_SESSION_ID and ZEPHYR_ACTOR_ROLE from the
// environment. A missing session id is not an error: an empty one simply
// means audit records carry no correlation id. A missing or unrecognized
// role falls back to a stdin TTY probe: interactive stdin implies a human
// user, and anything else (a pipe, a non-interactive invocation) implies
// an agent unless explicitly overridden.
func Resolve() Info {
	return Info{
		SessionID: os.Getenv(config.EnvSessionID),
		Role:      resolveRole(),
	}
}

func resolveRole() Role {
	switch Role(os.Getenv(config.EnvActorRole)) {
	case RoleUser:
		return RoleUser
	case RoleAgent:
		return RoleAgent
	case RoleUnknown:
		return RoleUnknown
	}

	if IsTerminalFunc(int(os.Stdin.Fd())) {
		return RoleUser
	}
	return RoleAgent
}

// ConfirmationHook asks an interactive human for confirmation. Agent
// callers must supply their own hook (e.g. a pre-authorized flag threaded
// through their invocation); nil means "no confirmation available",
// which the install pipeline treats as a hard rejection for agents.
type ConfirmationHook func(prompt string) bool

// RequireConfirmation runs hook and reports whether the caller approved.
// A nil hook never approves.
func RequireConfirmation(hook ConfirmationHook, prompt string) bool {
	if hook == nil {
		return false
	}
	return hook(prompt)
}
