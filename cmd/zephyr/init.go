package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const moduleScaffoldTemplate = `[module]
name = "%s"
version = "0.1.0"
description = ""
author = ""
license = ""

[dependencies]
required = []
optional = []

[load]
priority = 100
files = ["init.zsh"]
`

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Scaffold a new module directory with a starter module.toml",
	Args:  cobra.ExactArgs(1),
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := filepath.Join(cfg.ModulesDir, name)
	if _, err := os.Stat(dir); err == nil {
		return newUsageError("%s already exists", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	manifestPath := filepath.Join(dir, "module.toml")
	if err := os.WriteFile(manifestPath, []byte(fmt.Sprintf(moduleScaffoldTemplate, name)), 0644); err != nil {
		return err
	}

	initScript := filepath.Join(dir, "init.zsh")
	if err := os.WriteFile(initScript, []byte("# "+name+"\n"), 0644); err != nil {
		return err
	}

	fmt.Printf("scaffolded module %q at %s\n", name, dir)
	return nil
}
