// Package emit walks a resolved module order and writes shell sourcing
// instructions to a byte sink. It trusts the order and each module's Path
// without touching the filesystem itself.
package emit

import (
	"fmt"
	"io"
	"strings"

	"github.com/zephyr-sh/zephyr/internal/manifest"
)

// settingEnvPrefix is retained for both zsh and bash: a documented
// historical name predating the split between the two emitters.
const settingEnvPrefix = "ZSH_MODULE_"

// Emit writes, for each module in resolved order: a header comment, one
// environment export per setting (key order preserved), the pre_load
// hook call if present, a source line per file (order preserved), then
// the post_load hook call if present. shell is accepted for symmetry with
// the spec's interface; zsh and bash share identical syntax here.
func Emit(w io.Writer, resolved []*manifest.Module, shell string) error {
	for _, mod := range resolved {
		if err := emitModule(w, mod); err != nil {
			return err
		}
	}
	return nil
}

func emitModule(w io.Writer, mod *manifest.Module) error {
	if _, err := fmt.Fprintf(w, "# === Module: %s v%s ===\n", mod.Name, mod.Version); err != nil {
		return err
	}

	for _, s := range mod.Settings {
		envName := settingEnvPrefix + upperSnake(mod.Name) + "_" + upperSnake(s.Key)
		if _, err := fmt.Fprintf(w, "export %s=%s\n", envName, shellQuote(s.Value)); err != nil {
			return err
		}
	}

	if mod.Hooks.PreLoad != "" {
		if _, err := fmt.Fprintf(w, "%s\n", mod.Hooks.PreLoad); err != nil {
			return err
		}
	}

	for _, f := range mod.Files {
		if _, err := fmt.Fprintf(w, "source %q\n", mod.Path+"/"+f); err != nil {
			return err
		}
	}

	if mod.Hooks.PostLoad != "" {
		if _, err := fmt.Fprintf(w, "%s\n", mod.Hooks.PostLoad); err != nil {
			return err
		}
	}

	return nil
}

// upperSnake maps [a-z]->[A-Z] and '-'->'_', matching the env var naming
// rule for ZSH_MODULE_<NAME>_<KEY>.
func upperSnake(s string) string {
	s = strings.ToUpper(s)
	return strings.ReplaceAll(s, "-", "_")
}

// shellQuote wraps v in double quotes, backslash-escaping the four
// characters that would otherwise break out of a double-quoted shell
// string: backslash, double quote, backtick and dollar sign.
func shellQuote(v string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range v {
		switch r {
		case '\\', '"', '`', '$':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
