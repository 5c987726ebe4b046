package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zephyr-sh/zephyr/internal/audit"
	"github.com/zephyr-sh/zephyr/internal/session"
	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

// Update fetches and fast-forwards an already-installed git-backed
// module to its remote's current tip. The fetch, reset, scan, and
// validate all happen against a throwaway copy staged in a temp
// directory; the live module directory is never touched until that
// copy clears every gate, at which point it is swapped into place with
// the same atomicMove used by Install. A gate failure just discards the
// temp copy, so the live tree is left exactly as it was found.
func (ins *Installer) Update(ctx context.Context, moduleName string, opts Options) (*Result, error) {
	dir := filepath.Join(ins.Config.ModulesDir, moduleName)
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		err = fmt.Errorf("module %q was not installed from a git source and cannot be updated", moduleName)
		ins.recordFailure(audit.ActionUpdate, moduleName, dir, err)
		return nil, err
	}

	if err := ins.checkRoleForMutation(moduleName); err != nil {
		ins.recordFailure(audit.ActionUpdate, moduleName, dir, err)
		return nil, err
	}

	tempDir, err := ins.stageUpdateCopy(dir)
	if err != nil {
		ins.recordFailure(audit.ActionUpdate, moduleName, dir, err)
		return nil, err
	}
	cleanup := true
	defer func() {
		if cleanup {
			os.RemoveAll(tempDir)
		}
	}()

	if err := ins.Git.Fetch(ctx, tempDir); err != nil {
		ins.recordFailure(audit.ActionUpdate, moduleName, dir, err)
		return nil, err
	}

	branch, err := ins.Git.CurrentBranch(ctx, tempDir)
	if err != nil {
		ins.recordFailure(audit.ActionUpdate, moduleName, dir, err)
		return nil, err
	}

	if err := ins.Git.ResetHard(ctx, tempDir, "origin/"+branch); err != nil {
		ins.recordFailure(audit.ActionUpdate, moduleName, dir, err)
		return nil, err
	}

	result, err := ins.scanAndValidate(ctx, tempDir, opts)
	if err != nil {
		ins.recordResult(audit.ActionUpdate, dir, result, err)
		return nil, err
	}

	if err := ins.atomicMove(tempDir, dir, true); err != nil {
		ins.recordResult(audit.ActionUpdate, dir, result, err)
		return nil, err
	}
	cleanup = false
	result.Path = dir

	ins.recordResult(audit.ActionUpdate, dir, result, nil)
	return result, nil
}

// stageUpdateCopy copies the live module directory into a fresh temp
// directory under the same staging root Install uses, so a fetch that
// goes wrong never has a chance to mutate the installed copy.
func (ins *Installer) stageUpdateCopy(dir string) (string, error) {
	stagingRoot := filepath.Join(ins.Config.HomeDir, "staging")
	if err := os.MkdirAll(stagingRoot, 0755); err != nil {
		return "", &zerrors.FSError{Kind: zerrors.PermissionDenied, Path: stagingRoot, Err: err}
	}

	tempDir, err := os.MkdirTemp(stagingRoot, "update-")
	if err != nil {
		return "", &zerrors.FSError{Kind: zerrors.PermissionDenied, Path: stagingRoot, Err: err}
	}

	if err := copyDir(dir, tempDir); err != nil {
		os.RemoveAll(tempDir)
		return "", &zerrors.FSError{Kind: zerrors.PermissionDenied, Path: dir, Err: err}
	}

	return tempDir, nil
}

func (ins *Installer) checkRoleForMutation(module string) error {
	if ins.Session.Role != session.RoleAgent {
		return nil
	}
	if !session.RequireConfirmation(ins.Confirm, fmt.Sprintf("update %s?", module)) {
		return &zerrors.PolicyBlock{Reason: zerrors.AgentForbidden, Detail: "agent actor requires an approved confirmation hook", Module: module}
	}
	return nil
}
