package install

import (
	"os"

	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

// atomicMove moves a validated staging directory into its final module
// location. If target already exists, force must be set, and the
// previous directory is moved aside so it can be restored if the rename
// fails partway through.
func atomicMove(src, target string, force bool) error {
	if _, err := os.Stat(target); err == nil {
		if !force {
			return &zerrors.FSError{Kind: zerrors.TargetExists, Path: target}
		}
		backup := target + ".zephyr-replaced"
		os.RemoveAll(backup)
		if err := os.Rename(target, backup); err != nil {
			return &zerrors.FSError{Kind: zerrors.MoveFailed, Path: target, Err: err}
		}
		if err := os.Rename(src, target); err != nil {
			os.Rename(backup, target)
			return &zerrors.FSError{Kind: zerrors.MoveFailed, Path: target, Err: err}
		}
		os.RemoveAll(backup)
		return nil
	}

	if err := os.Rename(src, target); err != nil {
		return &zerrors.FSError{Kind: zerrors.MoveFailed, Path: target, Err: err}
	}
	return nil
}

// atomicMove is a method so Installer.Install reads naturally alongside
// its other phase methods.
func (ins *Installer) atomicMove(src, target string, force bool) error {
	return atomicMove(src, target, force)
}
