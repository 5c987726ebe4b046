package gitremote

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

// Git is the narrow, mockable git transport the install pipeline depends
// on. Every method is a single synchronous call; there is no persistent
// connection or background goroutine.
type Git interface {
	// CloneNoCheckout clones url into dir with no working tree and no
	// submodule init. dir must not already exist.
	CloneNoCheckout(ctx context.Context, url, dir string) error
	// Checkout populates the working tree at the clone's current HEAD.
	Checkout(ctx context.Context, dir string) error
	// Fetch updates dir's remote-tracking refs from origin.
	Fetch(ctx context.Context, dir string) error
	// ResetHard fast-forward-resets dir's working tree to ref (e.g.
	// "origin/main").
	ResetHard(ctx context.Context, dir, ref string) error
	// HeadHash returns the current HEAD commit hash of dir.
	HeadHash(ctx context.Context, dir string) (string, error)
	// CurrentBranch returns the checked-out branch name of dir.
	CurrentBranch(ctx context.Context, dir string) (string, error)
}

// CLIGit shells out to the system git binary. It is the only
// implementation shipped; installer tests substitute a fake Git, while
// transport_test.go runs CLIGit against real local repositories.
type CLIGit struct {
	// Binary is the git executable to invoke. Defaults to "git" when empty.
	Binary string
}

func (g *CLIGit) binary() string {
	if g.Binary == "" {
		return "git"
	}
	return g.Binary
}

func (g *CLIGit) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.binary(), args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// CloneNoCheckout runs `git clone --no-checkout --no-recurse-submodules`.
// The hooks directory of the resulting clone is never invoked by this
// call: git does not run post-clone hooks, and no checkout occurs.
func (g *CLIGit) CloneNoCheckout(ctx context.Context, url, dir string) error {
	out, err := g.run(ctx, "", "clone", "--no-checkout", "--no-recurse-submodules", url, dir)
	if err != nil {
		return &zerrors.GitError{Kind: zerrors.CloneFailed, URL: url, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(out))}
	}
	return nil
}

// Checkout runs `git checkout HEAD` to populate the working tree.
func (g *CLIGit) Checkout(ctx context.Context, dir string) error {
	if out, err := g.run(ctx, dir, "checkout", "HEAD", "--", "."); err != nil {
		return &zerrors.GitError{Kind: zerrors.CloneFailed, URL: dir, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(out))}
	}
	return nil
}

// Fetch runs `git fetch origin`.
func (g *CLIGit) Fetch(ctx context.Context, dir string) error {
	out, err := g.run(ctx, dir, "fetch", "origin")
	if err != nil {
		return &zerrors.GitError{Kind: zerrors.FetchFailed, URL: dir, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(out))}
	}
	return nil
}

// ResetHard runs `git reset --hard <ref>`.
func (g *CLIGit) ResetHard(ctx context.Context, dir, ref string) error {
	out, err := g.run(ctx, dir, "reset", "--hard", ref)
	if err != nil {
		return &zerrors.GitError{Kind: zerrors.ResetFailed, URL: dir, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(out))}
	}
	return nil
}

// HeadHash runs `git rev-parse HEAD`.
func (g *CLIGit) HeadHash(ctx context.Context, dir string) (string, error) {
	out, err := g.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", &zerrors.GitError{Kind: zerrors.PullFailed, URL: dir, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(out))}
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch runs `git rev-parse --abbrev-ref HEAD`, used by update to
// find which remote-tracking ref to fast-forward against.
func (g *CLIGit) CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := g.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", &zerrors.GitError{Kind: zerrors.PullFailed, URL: dir, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(out))}
	}
	return strings.TrimSpace(out), nil
}

// DefaultTimeout bounds a single git operation when the caller doesn't
// supply its own context deadline.
const DefaultTimeout = 60 * time.Second
