package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/graph"
	"github.com/zephyr-sh/zephyr/internal/manifest"
	"github.com/zephyr-sh/zephyr/internal/platform"
)

const listSchemaVersion = "1.0"

var (
	listJSONFlag   bool
	listPrettyFlag bool
	listFilterFlag string
	listGraphFlag  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered modules and their resolved load order",
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSONFlag, "json", false, "emit machine-readable JSON")
	listCmd.Flags().BoolVar(&listPrettyFlag, "pretty", false, "indent JSON output (only with --json)")
	listCmd.Flags().StringVar(&listFilterFlag, "filter", "", "only list modules whose name contains this substring")
	listCmd.Flags().StringVar(&listGraphFlag, "graph", "", "render the dependency graph instead of a flat list (supported: mermaid)")
}

// listEntry is one module's row in `list --json`.
type listEntry struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Priority     int      `json:"priority"`
	RequiredDeps []string `json:"required_deps"`
	OptionalDeps []string `json:"optional_deps"`
	Compatible   bool     `json:"compatible"`
	Reason       string   `json:"reason,omitempty"`
}

type listOutput struct {
	SchemaVersion string      `json:"schema_version"`
	Modules       []listEntry `json:"modules"`
	Order         []string    `json:"order,omitempty"`
	Error         string      `json:"error,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mods, _, err := graph.Discover(cfg.ModulesDir, moduleCache)
	if err != nil {
		return err
	}

	compatible, incompatible := graph.FilterCompatible(mods, platform.Detect())

	entries := buildListEntries(compatible, incompatible)
	entries = filterEntries(entries, listFilterFlag)

	var order []string
	var resolveErr error
	if resolved, err := graph.Resolve(compatible); err == nil {
		for _, m := range resolved {
			order = append(order, m.Name)
		}
	} else {
		resolveErr = err
	}

	if listGraphFlag != "" {
		return renderGraph(listGraphFlag, compatible)
	}

	if listJSONFlag {
		out := listOutput{SchemaVersion: listSchemaVersion, Modules: entries, Order: order}
		if resolveErr != nil {
			out.Error = resolveErr.Error()
		}
		return printJSON(out, listPrettyFlag)
	}

	for _, e := range entries {
		status := "compatible"
		if !e.Compatible {
			status = "incompatible: " + e.Reason
		}
		fmt.Printf("%-30s v%-10s priority=%-4d %s\n", e.Name, e.Version, e.Priority, status)
	}
	if resolveErr != nil {
		fmt.Fprintf(os.Stderr, "\ncould not resolve load order: %v\n", resolveErr)
	} else if len(order) > 0 {
		fmt.Printf("\nresolved load order: %s\n", strings.Join(order, " -> "))
	}
	return nil
}

func buildListEntries(compatible []*manifest.Module, incompatible []graph.Incompatible) []listEntry {
	entries := make([]listEntry, 0, len(compatible)+len(incompatible))
	for _, m := range compatible {
		entries = append(entries, listEntry{
			Name: m.Name, Version: m.Version, Priority: m.Priority,
			RequiredDeps: m.RequiredDeps, OptionalDeps: m.OptionalDeps,
			Compatible: true,
		})
	}
	for _, inc := range incompatible {
		entries = append(entries, listEntry{
			Name: inc.Module.Name, Version: inc.Module.Version, Priority: inc.Module.Priority,
			RequiredDeps: inc.Module.RequiredDeps, OptionalDeps: inc.Module.OptionalDeps,
			Compatible: false, Reason: inc.Reason,
		})
	}
	return entries
}

func filterEntries(entries []listEntry, substr string) []listEntry {
	if substr == "" {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if strings.Contains(e.Name, substr) {
			out = append(out, e)
		}
	}
	return out
}

// renderGraph writes the dependency graph of mods in the requested
// format. mermaid is the only supported value today.
func renderGraph(format string, mods []*manifest.Module) error {
	if format != "mermaid" {
		return newUsageError("unsupported --graph format %q (supported: mermaid)", format)
	}
	fmt.Println("graph TD")
	for _, m := range mods {
		for _, dep := range m.RequiredDeps {
			fmt.Printf("  %s --> %s\n", sanitizeMermaidID(dep), sanitizeMermaidID(m.Name))
		}
		for _, dep := range m.OptionalDeps {
			fmt.Printf("  %s -.-> %s\n", sanitizeMermaidID(dep), sanitizeMermaidID(m.Name))
		}
	}
	return nil
}

func sanitizeMermaidID(name string) string {
	return strings.NewReplacer("-", "_", ".", "_").Replace(name)
}

func printJSON(v any, pretty bool) error {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
