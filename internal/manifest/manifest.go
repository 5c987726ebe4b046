// Package manifest parses a module's module.toml into a typed Module
// record. The grammar is a tolerant subset of TOML: unknown sections and
// keys are ignored, integers that don't parse fall back to a default, and
// a bare scalar where a list is expected is treated as a length-1 list.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

// defaultPriority is used when [load].priority is absent or unparsable.
const defaultPriority = 100

// defaultVersion is used when [module].version is absent.
const defaultVersion = "0.0.0"

var nameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

const maxNameLen = 50

// Platforms constrains which hosts a module may load on.
type Platforms struct {
	OS         []string
	Arch       []string
	Shell      string
	MinVersion string
}

// Hooks names optional functions invoked around a module's sourced files.
type Hooks struct {
	PreLoad  string
	PostLoad string
}

// Module is the typed record produced by parsing a module.toml file.
type Module struct {
	Name         string
	Version      string
	Description  string
	Author       string
	License      string
	RequiredDeps []string
	OptionalDeps []string
	Platforms    Platforms
	Priority     int
	Files        []string
	Hooks        Hooks
	// Settings preserves insertion order for deterministic emission.
	Settings     []Setting
	Path         string
}

// Setting is one key/value pair from [settings], order preserved.
type Setting struct {
	Key   string
	Value string
}

// Clone returns a Module with fully independent storage: no slice or
// string in the result aliases the receiver's backing arrays.
func (m *Module) Clone() *Module {
	if m == nil {
		return nil
	}
	out := *m
	out.RequiredDeps = append([]string(nil), m.RequiredDeps...)
	out.OptionalDeps = append([]string(nil), m.OptionalDeps...)
	out.Platforms.OS = append([]string(nil), m.Platforms.OS...)
	out.Platforms.Arch = append([]string(nil), m.Platforms.Arch...)
	out.Files = append([]string(nil), m.Files...)
	out.Settings = append([]Setting(nil), m.Settings...)
	return &out
}

// Parse reads <dir>/module.toml and produces a Module with Path set to
// dir's absolute path. Returns a *zerrors.ParseError on any failure.
func Parse(dir string) (*Module, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, &zerrors.ParseError{Kind: zerrors.FileReadError, File: dir, Err: err}
	}

	path := filepath.Join(absDir, "module.toml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &zerrors.ParseError{Kind: zerrors.FileNotFound, File: path, Err: err}
		}
		return nil, &zerrors.ParseError{Kind: zerrors.FileReadError, File: path, Err: err}
	}

	var raw map[string]interface{}
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, &zerrors.ParseError{Kind: zerrors.TomlParseErr, File: path, Err: err}
	}

	mod, err := buildModule(raw, meta)
	if err != nil {
		return nil, &zerrors.ParseError{Kind: zerrors.InvalidSchema, File: path, Err: err}
	}
	mod.Path = absDir

	return mod, nil
}

func buildModule(raw map[string]interface{}, meta toml.MetaData) (*Module, error) {
	m := &Module{
		Version:  defaultVersion,
		Priority: defaultPriority,
	}

	if section, ok := asSection(raw["module"]); ok {
		m.Name = asString(section["name"])
		if v := asString(section["version"]); v != "" {
			m.Version = v
		}
		m.Description = asString(section["description"])
		m.Author = asString(section["author"])
		m.License = asString(section["license"])
	}

	if m.Name == "" {
		return nil, fmt.Errorf("module.name is required")
	}
	if len(m.Name) > maxNameLen {
		return nil, fmt.Errorf("module.name exceeds %d characters", maxNameLen)
	}
	if !nameRE.MatchString(m.Name) {
		return nil, fmt.Errorf("module.name %q does not match [A-Za-z][A-Za-z0-9_-]*", m.Name)
	}

	if section, ok := asSection(raw["dependencies"]); ok {
		m.RequiredDeps = dedup(asStringList(section["required"]))
		m.OptionalDeps = dedup(asStringList(section["optional"]))
	}

	if section, ok := asSection(raw["platforms"]); ok {
		m.Platforms.OS = asStringList(section["os"])
		m.Platforms.Arch = asStringList(section["arch"])
		m.Platforms.Shell = asString(section["shell"])
		m.Platforms.MinVersion = asString(section["min_version"])
	}

	if section, ok := asSection(raw["load"]); ok {
		m.Priority = asIntOrDefault(section["priority"], defaultPriority)
		m.Files = asStringList(section["files"])
	}

	if section, ok := asSection(raw["hooks"]); ok {
		m.Hooks.PreLoad = asString(section["pre_load"])
		m.Hooks.PostLoad = asString(section["post_load"])
	}

	m.Settings = settingsInOrder(raw["settings"], meta)

	return m, nil
}

func asSection(v interface{}) (map[string]interface{}, bool) {
	section, ok := v.(map[string]interface{})
	return section, ok
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// asStringList tolerates a bare scalar in place of a list, per the
// manifest grammar's "single value treated as length-1 list" rule.
func asStringList(v interface{}) []string {
	switch vv := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if vv == "" {
			return nil
		}
		return []string{vv}
	default:
		return nil
	}
}

// asIntOrDefault accepts an int64 (TOML's native integer type) and falls
// back to def for anything else, matching the grammar's tolerant integer
// parse rule.
func asIntOrDefault(v interface{}, def int) int {
	switch vv := v.(type) {
	case int64:
		return int(vv)
	case int:
		return vv
	default:
		return def
	}
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// settingsInOrder extracts [settings] as key/value pairs in declaration
// order, using the TOML decoder's key-position metadata since decoding
// into map[string]interface{} otherwise loses that order.
func settingsInOrder(v interface{}, meta toml.MetaData) []Setting {
	section, ok := asSection(v)
	if !ok {
		return nil
	}

	var out []Setting
	seen := make(map[string]struct{}, len(section))
	for _, key := range meta.Keys() {
		if len(key) != 2 || key[0] != "settings" {
			continue
		}
		k := key[1]
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, Setting{Key: k, Value: asString(section[k])})
	}
	return out
}
