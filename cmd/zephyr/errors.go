package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/zephyr-sh/zephyr/internal/errmsg"
	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

// handleCommandError prints err in the human-facing format and exits with
// the code the error taxonomy maps to. It is the single boundary where a
// structured error becomes stderr text plus a process exit code; every
// subcommand's RunE returns the structured error and lets this function
// translate it.
func handleCommandError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, errmsg.Format(err, nil))
	exitWithCode(exitCodeFor(err))
}

// exitCodeFor maps a zephyr error to the exit codes in exitcodes.go:
// scan infrastructure failures get 3, everything else structured gets 1,
// invalid CLI usage gets 4.
func exitCodeFor(err error) int {
	var scanErr *zerrors.ScanError
	if errors.As(err, &scanErr) {
		return ExitScanIOOrTimeout
	}

	var usageErr *usageError
	if errors.As(err, &usageErr) {
		return ExitUsage
	}

	return ExitGeneral
}

// usageError marks an error as invalid-argument rather than a structured
// operational failure, so exitCodeFor maps it to ExitUsage instead of
// ExitGeneral.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
