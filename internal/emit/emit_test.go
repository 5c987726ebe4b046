package emit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zephyr-sh/zephyr/internal/manifest"
)

func TestEmit_FullModule(t *testing.T) {
	mod := &manifest.Module{
		Name:    "git-prompt",
		Version: "1.2.0",
		Path:    "/home/user/.zsh/modules/git-prompt",
		Settings: []manifest.Setting{
			{Key: "color", Value: "auto"},
			{Key: "symbol-char", Value: `say "hi"`},
		},
		Hooks: manifest.Hooks{PreLoad: "_gp_init", PostLoad: "_gp_done"},
		Files: []string{"prompt.zsh", "helpers.zsh"},
	}

	var buf strings.Builder
	require.NoError(t, Emit(&buf, []*manifest.Module{mod}, "zsh"))

	out := buf.String()
	assert.Contains(t, out, "# === Module: git-prompt v1.2.0 ===\n")
	assert.Contains(t, out, `export ZSH_MODULE_GIT_PROMPT_COLOR="auto"`+"\n")
	assert.Contains(t, out, `export ZSH_MODULE_GIT_PROMPT_SYMBOL_CHAR="say \"hi\""`+"\n")
	assert.Contains(t, out, "_gp_init\n")
	assert.Contains(t, out, `source "/home/user/.zsh/modules/git-prompt/prompt.zsh"`+"\n")
	assert.Contains(t, out, `source "/home/user/.zsh/modules/git-prompt/helpers.zsh"`+"\n")
	assert.Contains(t, out, "_gp_done\n")

	// pre_load must precede sourced files, which must precede post_load
	preIdx := strings.Index(out, "_gp_init")
	fileIdx := strings.Index(out, "prompt.zsh")
	postIdx := strings.Index(out, "_gp_done")
	assert.Less(t, preIdx, fileIdx)
	assert.Less(t, fileIdx, postIdx)
}

func TestEmit_NoHooksNoSettings(t *testing.T) {
	mod := &manifest.Module{Name: "bare", Version: "0.0.0", Path: "/m", Files: []string{"a.sh"}}

	var buf strings.Builder
	require.NoError(t, Emit(&buf, []*manifest.Module{mod}, "bash"))

	out := buf.String()
	assert.Contains(t, out, "# === Module: bare v0.0.0 ===\n")
	assert.Contains(t, out, `source "/m/a.sh"`)
	assert.NotContains(t, out, "export")
}

func TestUpperSnake(t *testing.T) {
	assert.Equal(t, "GIT_PROMPT", upperSnake("git-prompt"))
	assert.Equal(t, "FOO_BAR_BAZ", upperSnake("foo-bar-baz"))
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `"auto"`, shellQuote("auto"))
	assert.Equal(t, `"a\$b"`, shellQuote("a$b"))
	assert.Equal(t, "\"a\\`b\"", shellQuote("a`b"))
	assert.Equal(t, `"a\\b"`, shellQuote(`a\b`))
}

func TestEmit_MultipleModulesOrderPreserved(t *testing.T) {
	first := &manifest.Module{Name: "a", Path: "/a"}
	second := &manifest.Module{Name: "b", Path: "/b"}

	var buf strings.Builder
	require.NoError(t, Emit(&buf, []*manifest.Module{first, second}, "zsh"))

	out := buf.String()
	assert.Less(t, strings.Index(out, "Module: a"), strings.Index(out, "Module: b"))
}
