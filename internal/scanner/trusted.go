package scanner

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// builtinTrusted names module directories shipped with a well-known
// installer pattern (e.g. oh-my-zsh's own curl|sh bootstrap) that would
// otherwise trip the RCE family. The list is intentionally small: it
// trades a handful of named exceptions for not having to special-case
// every vendor installer in the pattern table itself.
var builtinTrusted = map[string][]string{
	"oh-my-zsh": {"rce.curl_pipe_bash", "rce.wget_pipe_shell"},
}

// TrustedModules is the merged built-in + user allowlist of module
// directory names exempt from specific pattern ids.
type TrustedModules struct {
	// exempt maps module directory name -> set of pattern ids relaxed for it.
	exempt map[string]map[string]bool
}

type trustedFile struct {
	Modules []trustedEntry `toml:"modules"`
}

type trustedEntry struct {
	Name           string   `toml:"name"`
	ExemptPatterns []string `toml:"exempt_patterns"`
}

// LoadTrustedModules merges the built-in allowlist with the user's
// $HOME/.zephyr/trusted_modules.toml, if present. A missing or malformed
// user file is not fatal: scanning proceeds with the built-in list alone.
func LoadTrustedModules(userFile string) *TrustedModules {
	tm := &TrustedModules{exempt: make(map[string]map[string]bool)}
	for name, ids := range builtinTrusted {
		tm.add(name, ids)
	}

	if userFile == "" {
		return tm
	}
	data, err := os.ReadFile(userFile)
	if err != nil {
		return tm
	}
	var parsed trustedFile
	if _, err := toml.Decode(string(data), &parsed); err != nil {
		return tm
	}
	for _, e := range parsed.Modules {
		if e.Name == "" {
			continue
		}
		tm.add(e.Name, e.ExemptPatterns)
	}
	return tm
}

func (tm *TrustedModules) add(name string, ids []string) {
	set := tm.exempt[name]
	if set == nil {
		set = make(map[string]bool)
		tm.exempt[name] = set
	}
	for _, id := range ids {
		set[id] = true
	}
}

// Relaxes reports whether the module directory named by root is on the
// allowlist for patternID. Matching is exact on the directory's base
// name; a relaxation never applies via prefix or substring match.
func (tm *TrustedModules) Relaxes(root, patternID string) bool {
	if tm == nil {
		return false
	}
	name := filepath.Base(root)
	set, ok := tm.exempt[name]
	if !ok {
		return false
	}
	return set[patternID]
}
