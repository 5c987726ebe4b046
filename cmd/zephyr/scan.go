package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/config"
	"github.com/zephyr-sh/zephyr/internal/scanner"
	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

var (
	scanJSONFlag   bool
	scanPrettyFlag bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <directory|command>",
	Short: "Statically scan a directory or a single command string for dangerous patterns",
	Long: `scan runs the pattern engine against a module directory, or — when the
argument isn't a directory on disk — treats it as a single command string
("command mode", which uses an inverted exit code mapping suited to quick
shell-side checks: 1 for a critical finding, 2 for a warning, 0 otherwise).`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSONFlag, "json", false, "emit machine-readable JSON")
	scanCmd.Flags().BoolVar(&scanPrettyFlag, "pretty", false, "indent JSON output (only with --json)")
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	trusted := scanner.LoadTrustedModules(cfg.TrustedFile)

	var result *scanner.Result
	if info, statErr := os.Stat(target); statErr == nil && info.IsDir() {
		timeout := config.GetScanTimeout()
		ctx, cancel := context.WithTimeout(globalCtx, timeout)
		defer cancel()
		deadline := time.Now().Add(timeout)
		result, err = scanner.Scan(ctx, target, deadline, trusted)
		if err != nil {
			var scanErr *zerrors.ScanError
			if errors.As(err, &scanErr) {
				fmt.Fprintln(os.Stderr, scanErr.Error())
				exitWithCode(ExitScanIOOrTimeout)
				return nil
			}
			return err
		}
	} else {
		result = scanner.ScanCommand(target, trusted)
	}

	if scanJSONFlag {
		if err := printJSON(result, scanPrettyFlag); err != nil {
			return err
		}
	} else {
		printScanSummary(result)
	}

	exitWithCode(result.ExitCodeHint)
	return nil
}

func printScanSummary(result *scanner.Result) {
	fmt.Printf("scanned %d file(s), %d line(s) in %dms\n", result.FilesScanned, result.LinesScanned, result.DurationMs)
	fmt.Printf("policy recommendation: %s\n\n", result.PolicyRecommendation)
	for _, f := range result.Findings {
		loc := f.File
		if f.Line > 0 {
			loc = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		fmt.Printf("[%s] %s (%s): %s\n", f.Severity, loc, f.PatternID, f.Description)
	}
	if result.TrustedModuleApplied {
		fmt.Println("\nnote: one or more findings were downgraded by a trusted-module relaxation")
	}
}
