package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/install"
)

var (
	uninstallForceFlag bool
	uninstallYesFlag   bool
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <module>",
	Short: "Remove an installed module",
	Long: `uninstall refuses to remove a module still required by another
installed module unless --force is given, and otherwise asks for
confirmation unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVar(&uninstallForceFlag, "force", false, "remove the module even if other installed modules depend on it")
	uninstallCmd.Flags().BoolVar(&uninstallYesFlag, "yes", false, "skip the confirmation prompt")
}

func runUninstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ins := buildInstaller(cfg)
	opts := install.Options{Force: uninstallForceFlag, Yes: uninstallYesFlag}

	if err := ins.Uninstall(args[0], opts); err != nil {
		return err
	}

	fmt.Printf("uninstalled %s\n", args[0])
	return nil
}
