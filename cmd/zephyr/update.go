package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/install"
)

var (
	updateUnsafeFlag bool
	updateYesFlag    bool
)

var updateCmd = &cobra.Command{
	Use:   "update <module>",
	Short: "Fetch and fast-forward an installed git-backed module, re-running the scan gate",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateUnsafeFlag, "unsafe", false, "proceed past a block-level scan verdict (never honored for an agent actor)")
	updateCmd.Flags().BoolVar(&updateYesFlag, "yes", false, "answer a warn-level confirmation prompt affirmatively without asking")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ins := buildInstaller(cfg)
	opts := install.Options{Unsafe: updateUnsafeFlag, Yes: updateYesFlag}

	result, err := ins.Update(globalCtx, args[0], opts)
	if err != nil {
		return err
	}

	fmt.Printf("updated %s to v%s\n", result.Module.Name, result.Module.Version)
	return nil
}
