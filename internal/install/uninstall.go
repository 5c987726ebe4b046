package install

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zephyr-sh/zephyr/internal/audit"
	"github.com/zephyr-sh/zephyr/internal/graph"
	"github.com/zephyr-sh/zephyr/internal/session"
	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

// Uninstall removes an installed module's directory, refusing to do so
// if another installed module still requires it unless opts.Force is
// set, and requiring either opts.Yes or an approving confirmation hook
// before anything is removed.
func (ins *Installer) Uninstall(moduleName string, opts Options) error {
	dir := filepath.Join(ins.Config.ModulesDir, moduleName)
	if _, err := os.Stat(dir); err != nil {
		err = fmt.Errorf("module %q is not installed", moduleName)
		ins.recordFailure(audit.ActionUninstall, moduleName, dir, err)
		return err
	}

	if !opts.Force {
		if err := ins.checkReverseDeps(moduleName); err != nil {
			ins.recordFailure(audit.ActionUninstall, moduleName, dir, err)
			return err
		}
	}

	if !opts.Yes && !session.RequireConfirmation(ins.Confirm, fmt.Sprintf("uninstall %s?", moduleName)) {
		err := &zerrors.PolicyBlock{Reason: zerrors.WarningsRequireConfirmation, Detail: "uninstall requires confirmation", Module: moduleName}
		ins.recordFailure(audit.ActionUninstall, moduleName, dir, err)
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		wrapped := &zerrors.FSError{Kind: zerrors.PermissionDenied, Path: dir, Err: err}
		ins.recordFailure(audit.ActionUninstall, moduleName, dir, wrapped)
		return wrapped
	}

	ins.recordOutcome(audit.ActionUninstall, moduleName, dir, nil, nil)
	return nil
}

func (ins *Installer) checkReverseDeps(moduleName string) error {
	mods, _, err := graph.Discover(ins.Config.ModulesDir, ins.Cache)
	if err != nil {
		return &zerrors.FSError{Kind: zerrors.PermissionDenied, Path: ins.Config.ModulesDir, Err: err}
	}

	reverse := graph.BuildReverseDeps(mods)
	dependents := reverse[moduleName]
	if len(dependents) == 0 {
		return nil
	}

	names := make([]string, 0, len(dependents))
	for name := range dependents {
		names = append(names, name)
	}
	sort.Strings(names)

	return &zerrors.PolicyBlock{
		Reason: zerrors.WarningsRequireConfirmation,
		Detail: fmt.Sprintf("required by %v; pass --force to remove anyway", names),
		Module: moduleName,
	}
}
