package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/install"
)

var (
	installForceFlag  bool
	installLocalFlag  bool
	installUnsafeFlag bool
	installYesFlag    bool
)

var installCmd = &cobra.Command{
	Use:   "install <source>",
	Short: "Install a module from a git URL, GitHub shorthand, local path, or signed release",
	Long: `install runs the clone-without-checkout -> scan -> validate -> checkout
-> atomic-move pipeline: nothing from source is given a working tree, let
alone run, until the security scanner and the dependency graph both sign
off.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installForceFlag, "force", false, "overwrite an existing module directory of the same name")
	installCmd.Flags().BoolVar(&installLocalFlag, "local", false, "treat the source as a local filesystem path")
	installCmd.Flags().BoolVar(&installUnsafeFlag, "unsafe", false, "proceed past a block-level scan verdict (never honored for an agent actor)")
	installCmd.Flags().BoolVar(&installYesFlag, "yes", false, "answer a warn-level confirmation prompt affirmatively without asking")
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ins := buildInstaller(cfg)
	opts := install.Options{
		Unsafe: installUnsafeFlag,
		Force:  installForceFlag,
		Yes:    installYesFlag,
	}

	source := args[0]
	if installLocalFlag && !filepath.IsAbs(source) {
		source = "./" + source
	}

	result, err := ins.Install(globalCtx, source, opts)
	if err != nil {
		return err
	}

	fmt.Printf("installed %s v%s -> %s\n", result.Module.Name, result.Module.Version, result.Path)
	if result.ResolvedRef != "" {
		fmt.Printf("resolved %s to %s\n", source, result.ResolvedRef)
	}
	if result.Policy == "warn" {
		fmt.Println("note: the scan produced warnings; run 'zephyr scan' on the installed module to review them")
	}
	return nil
}
