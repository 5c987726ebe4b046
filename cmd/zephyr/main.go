package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/buildinfo"
	"github.com/zephyr-sh/zephyr/internal/log"
)

// levelTrace sits below slog.LevelDebug; zephyr's --trace flag asks for
// even more detail than --debug (git/HTTP wire-level chatter).
const levelTrace = slog.Level(-8)

var (
	verboseFlag bool
	debugFlag   bool
	traceFlag   bool
	noColorFlag bool
	shellFlag   string
)

// globalCtx is canceled on SIGINT/SIGTERM; commands thread it through to
// every blocking operation (git transport, HTTP fetches, the scanner).
var globalCtx context.Context
var globalCancel context.CancelFunc

var rootCmd = &cobra.Command{
	Use:   "zephyr",
	Short: "A security-conscious module loader for zsh and bash",
	Long: `zephyr discovers, validates, and loads shell modules from
$ZSH_MODULES_DIR, resolving their declared dependencies into a
deterministic source order. It also scans, installs, updates, and
uninstalls modules from git and signed-release sources.`,
	RunE: runLoad,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "show debug output (DEBUG level; timestamps and source locations via ZEPHYR_DEBUG_TIMESTAMPS/ZEPHYR_DEBUG_LOCATION)")
	rootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", false, "show trace output (includes git/HTTP transport detail)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable ANSI color in output")
	rootCmd.PersistentFlags().StringVar(&shellFlag, "shell", "", "target shell for emitted sourcing code (zsh or bash); defaults to $SHELL")

	rootCmd.PersistentPreRun = initLogger
	rootCmd.Version = buildinfo.Version()
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(showSigningKeyCmd)
	rootCmd.AddCommand(verifyCmd)
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nreceived %s, canceling operation...\n", sig)
		globalCancel()

		<-sigChan
		fmt.Fprintln(os.Stderr, "forced exit")
		exitWithCode(ExitCancelled)
	}()

	if err := rootCmd.Execute(); err != nil {
		if globalCtx.Err() == context.Canceled {
			exitWithCode(ExitCancelled)
		}
		handleCommandError(err)
	}
}

// initLogger wires the global logger from the precedence flags > env >
// default (WARN), matching config's own "parse, validate, fall back"
// idiom used throughout the rest of zephyr.
func initLogger(cmd *cobra.Command, args []string) {
	level, timestamps, location := determineLogLevel()
	handler := log.NewCLIHandlerWithOptions(level, log.CLIHandlerOptions{
		Timestamps: timestamps,
		Location:   location,
		Color:      !noColorFlag,
	})
	log.SetDefault(log.New(handler))

	if level <= slog.LevelDebug {
		fmt.Fprintln(os.Stderr, "[DEBUG MODE] output may contain file paths and URLs; do not share publicly")
	}
}

// determineLogLevel resolves the effective slog level plus whether
// timestamps/source-location decoration is on, honoring flags first,
// then ZEPHYR_DEBUG/ZEPHYR_VERBOSE/ZEPHYR_DEBUG_TIMESTAMPS/
// ZEPHYR_DEBUG_LOCATION, then the WARN default.
func determineLogLevel() (level slog.Level, timestamps, location bool) {
	timestamps = isTruthy(os.Getenv("ZEPHYR_DEBUG_TIMESTAMPS"))
	location = isTruthy(os.Getenv("ZEPHYR_DEBUG_LOCATION"))

	switch {
	case traceFlag:
		return levelTrace, true, true
	case debugFlag:
		return slog.LevelDebug, timestamps, location
	case verboseFlag:
		return slog.LevelInfo, timestamps, location
	}

	switch debugEnvTier(os.Getenv("ZEPHYR_DEBUG")) {
	case 3:
		return levelTrace, true, true
	case 2:
		return slog.LevelDebug, timestamps, location
	case 1:
		return slog.LevelInfo, timestamps, location
	}

	if isTruthy(os.Getenv("ZEPHYR_VERBOSE")) {
		return slog.LevelInfo, timestamps, location
	}

	return slog.LevelWarn, timestamps, location
}

// debugEnvTier parses ZEPHYR_DEBUG's documented values: 0-3, or the
// words true/debug/trace. Anything else is treated as unset (tier 0).
func debugEnvTier(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0
	case "true", "debug":
		return 2
	case "trace":
		return 3
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0
		}
		if n > 3 {
			return 3
		}
		return n
	}
	return 0
}

func isTruthy(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
