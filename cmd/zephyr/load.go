package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/emit"
	"github.com/zephyr-sh/zephyr/internal/errmsg"
	"github.com/zephyr-sh/zephyr/internal/graph"
	"github.com/zephyr-sh/zephyr/internal/log"
)

// runLoad is the default command: discover modules, filter by platform,
// resolve the dependency graph, and emit shell sourcing code to stdout.
func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	compatible, dropped, incompatible, err := discoverAndFilter(cfg)
	if err != nil {
		return err
	}

	for _, d := range dropped {
		log.Default().Warn("dropped module that failed to parse", "dir", d.Dir, "error", d.Err)
	}
	for _, inc := range incompatible {
		log.Default().Info("module incompatible with current platform", "module", inc.Module.Name, "reason", inc.Reason)
	}

	if len(compatible) == 0 {
		fmt.Fprintln(os.Stderr, "No modules found.")
		fmt.Fprintf(os.Stderr, "Suggestions:\n  - Check that $ZSH_MODULES_DIR (%s) exists and contains module directories\n", cfg.ModulesDir)
		fmt.Fprintln(os.Stderr, "  - Run 'zephyr install <source>' to add a module")
		exitWithCode(ExitGeneral)
		return nil
	}

	resolved, err := graph.Resolve(compatible)
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(err, nil))
		exitWithCode(ExitGeneral)
		return nil
	}

	return emit.Emit(os.Stdout, resolved, resolvedShell())
}
