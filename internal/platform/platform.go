// Package platform detects the current OS, architecture and shell so the
// module graph builder can filter modules whose platforms constraint
// excludes the running host.
package platform

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Current describes the host a module graph is being resolved for.
type Current struct {
	OS           string // runtime.GOOS token: "linux", "darwin", ...
	Arch         string // runtime.GOARCH token: "amd64", "arm64", ...
	Shell        string // "zsh" or "bash", resolved from $ZEPHYR_SHELL or $SHELL
	ShellVersion string // dotted version string, e.g. "5.9", empty if undetectable
}

// Detect inspects the running process environment to build a Current.
// Shell is resolved from $ZEPHYR_SHELL if set, else from the basename of
// $SHELL. Shell version is best-effort: failure to invoke the shell binary
// leaves ShellVersion empty, which the platform filter treats as "any".
func Detect() Current {
	cur := Current{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	shellPath := os.Getenv("ZEPHYR_SHELL")
	if shellPath == "" {
		shellPath = os.Getenv("SHELL")
	}
	cur.Shell = filepath.Base(shellPath)
	cur.ShellVersion = detectShellVersion(cur.Shell, shellPath)

	return cur
}

// detectShellVersion runs `<shell> --version` and extracts the first
// dotted-number token it finds. Returns "" if the shell can't be run or no
// version-looking token is present in its output.
func detectShellVersion(shell, path string) string {
	if shell == "" {
		return ""
	}
	bin := path
	if bin == "" {
		bin = shell
	}
	out, err := exec.Command(bin, "--version").Output()
	if err != nil {
		return ""
	}
	return firstVersionToken(string(out))
}

func firstVersionToken(s string) string {
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r == '.' || (r >= '0' && r <= '9'))
	}) {
		if looksLikeVersion(field) {
			return field
		}
	}
	return ""
}

func looksLikeVersion(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		if _, err := strconv.Atoi(p); err != nil {
			return false
		}
	}
	return true
}

// CompareVersions compares two dotted version strings component by
// component as integers, left to right. Missing trailing components compare
// as 0. Returns -1, 0 or 1 the way strings.Compare does.
//
// Non-numeric components fall back to a lexicographic compare of that
// single component, so malformed input degrades gracefully instead of
// panicking.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := "0", "0"
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if c := compareComponent(av, bv); c != 0 {
			return c
		}
	}
	return 0
}

func compareComponent(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
