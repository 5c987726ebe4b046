package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/errmsg"
	"github.com/zephyr-sh/zephyr/internal/graph"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every discovered module's manifest and dependency graph",
	Long: `validate runs the same discovery, platform filter, and dependency
resolution 'load' does, but reports every problem it finds instead of
stopping at the first one, and never writes shell code.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	compatible, dropped, incompatible, err := discoverAndFilter(cfg)
	if err != nil {
		return err
	}

	ok := true

	for _, d := range dropped {
		ok = false
		fmt.Printf("DROPPED  %s: %v\n", d.Dir, d.Err)
	}
	for _, inc := range incompatible {
		fmt.Printf("SKIPPED  %s: %s\n", inc.Module.Name, inc.Reason)
	}

	if len(compatible) == 0 {
		fmt.Println("No compatible modules discovered.")
		exitWithCode(ExitGeneral)
		return nil
	}

	resolved, err := graph.Resolve(compatible)
	if err != nil {
		ok = false
		fmt.Fprintln(os.Stderr, errmsg.Format(err, nil))
	} else {
		for _, m := range resolved {
			fmt.Printf("OK       %s v%s (priority %d)\n", m.Name, m.Version, m.Priority)
		}
	}

	if !ok {
		exitWithCode(ExitGeneral)
	}
	return nil
}
