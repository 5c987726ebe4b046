// Package install implements the module install, update, and uninstall
// pipelines: clone or fetch a source, run it through the security
// scanner, validate its manifest and dependency graph, and only then
// move it into place. Every phase that can fail aborts before the
// module directory is touched, and every terminal outcome is recorded
// to the audit log.
package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/zephyr-sh/zephyr/internal/audit"
	"github.com/zephyr-sh/zephyr/internal/config"
	"github.com/zephyr-sh/zephyr/internal/graph"
	"github.com/zephyr-sh/zephyr/internal/gitremote"
	"github.com/zephyr-sh/zephyr/internal/httputil"
	"github.com/zephyr-sh/zephyr/internal/manifest"
	"github.com/zephyr-sh/zephyr/internal/scanner"
	"github.com/zephyr-sh/zephyr/internal/session"
	"github.com/zephyr-sh/zephyr/internal/signing"
	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

// maxReleaseArchiveSize bounds a downloaded SignedRelease archive.
const maxReleaseArchiveSize = 64 * 1024 * 1024

// Options controls one install/update/uninstall invocation.
type Options struct {
	// Unsafe bypasses a block-level scan verdict. Never honored for an
	// agent actor regardless of this flag.
	Unsafe bool
	// Force overwrites an existing module directory on install, and
	// skips the reverse-dependency check on uninstall.
	Force bool
	// Yes answers any warn-level confirmation prompt affirmatively
	// without invoking the confirmation hook.
	Yes bool
}

// Result is the outcome of a successful install or update.
type Result struct {
	Module      *manifest.Module
	Source      gitremote.Source
	Findings    []scanner.Finding
	Policy      scanner.PolicyRecommendation
	Path        string
	ResolvedRef string
}

// Installer carries every dependency the pipeline needs, each narrow and
// mockable so tests never touch a real network or a real git binary.
type Installer struct {
	Config      *config.Config
	Git         gitremote.Git
	HTTPClient  *http.Client
	Verifier    *signing.Verifier
	Trusted     *scanner.TrustedModules
	Audit       *audit.Logger
	Session     session.Info
	Confirm     session.ConfirmationHook
	ScanTimeout time.Duration
	Cache       *graph.Cache
	// GitHub resolves a GitHubShorthand source's default-branch HEAD into
	// Result.ResolvedRef. Nil disables the lookup; a lookup failure leaves
	// ResolvedRef empty and never fails the install.
	GitHub *gitremote.GitHubResolver
}

func (ins *Installer) scanTimeout() time.Duration {
	if ins.ScanTimeout > 0 {
		return ins.ScanTimeout
	}
	return config.DefaultScanTimeout
}

func (ins *Installer) httpClient() *http.Client {
	if ins.HTTPClient != nil {
		return ins.HTTPClient
	}
	return httputil.NewSecureClient(httputil.DefaultOptions())
}

// Install runs the full pipeline for rawSource and, on success, leaves
// the module at <ModulesDir>/<module.name>.
func (ins *Installer) Install(ctx context.Context, rawSource string, opts Options) (*Result, error) {
	src, err := gitremote.ParseSource(rawSource)
	if err != nil {
		return nil, err
	}

	if err := ins.checkRole(opts, src); err != nil {
		ins.recordFailure(audit.ActionInstall, "", rawSource, err)
		return nil, err
	}

	tempDir, err := ins.stageSource(ctx, src)
	if err != nil {
		ins.recordFailure(audit.ActionInstall, "", rawSource, err)
		return nil, err
	}
	cleanup := true
	defer func() {
		if cleanup {
			os.RemoveAll(tempDir)
		}
	}()

	result, err := ins.scanAndValidate(ctx, tempDir, opts)
	if err != nil {
		ins.recordResult(audit.ActionInstall, rawSource, result, err)
		return nil, err
	}
	result.Source = src
	if src.Kind == gitremote.KindGitHubShorthand && ins.GitHub != nil {
		if ref, err := ins.GitHub.DefaultBranchHead(ctx, src.Owner, src.Repo); err == nil {
			result.ResolvedRef = ref
		}
	}

	if err := ins.checkoutIfGit(ctx, src, tempDir); err != nil {
		ins.recordResult(audit.ActionInstall, rawSource, result, err)
		return nil, err
	}

	target := filepath.Join(ins.Config.ModulesDir, result.Module.Name)
	if err := ins.atomicMove(tempDir, target, opts.Force); err != nil {
		ins.recordResult(audit.ActionInstall, rawSource, result, err)
		return nil, err
	}
	cleanup = false
	result.Path = target

	ins.recordResult(audit.ActionInstall, rawSource, result, nil)
	return result, nil
}

// checkRole enforces the stricter policy an agent actor is held to: no
// --unsafe, and a confirmation hook must be present and approve before
// anything is cloned.
func (ins *Installer) checkRole(opts Options, src gitremote.Source) error {
	if ins.Session.Role != session.RoleAgent {
		return nil
	}
	if opts.Unsafe {
		return &zerrors.PolicyBlock{Reason: zerrors.AgentForbidden, Detail: "agent actor may not pass --unsafe", Module: src.Raw}
	}
	if !session.RequireConfirmation(ins.Confirm, fmt.Sprintf("install %s?", src.Raw)) {
		return &zerrors.PolicyBlock{Reason: zerrors.AgentForbidden, Detail: "agent actor requires an approved confirmation hook", Module: src.Raw}
	}
	return nil
}

// stageSource materializes src into a freshly created temp directory
// under HomeDir/staging, with no working tree populated for git sources yet
// (checkout happens only after the scan passes).
func (ins *Installer) stageSource(ctx context.Context, src gitremote.Source) (string, error) {
	if err := ins.Config.EnsureDirectories(); err != nil {
		return "", &zerrors.FSError{Kind: zerrors.PermissionDenied, Path: ins.Config.ModulesDir, Err: err}
	}

	// Staging happens under HomeDir rather than ModulesDir itself, so an
	// in-progress install is never mistaken for an installed module by
	// graph discovery.
	stagingRoot := filepath.Join(ins.Config.HomeDir, "staging")
	if err := os.MkdirAll(stagingRoot, 0755); err != nil {
		return "", &zerrors.FSError{Kind: zerrors.PermissionDenied, Path: stagingRoot, Err: err}
	}

	tempDir, err := os.MkdirTemp(stagingRoot, "install-")
	if err != nil {
		return "", &zerrors.FSError{Kind: zerrors.PermissionDenied, Path: stagingRoot, Err: err}
	}

	switch src.Kind {
	case gitremote.KindGitHubShorthand, gitremote.KindGitHTTPS, gitremote.KindGitSSH:
		// CloneNoCheckout requires a nonexistent destination.
		if err := os.Remove(tempDir); err != nil {
			return "", &zerrors.FSError{Kind: zerrors.PermissionDenied, Path: tempDir, Err: err}
		}
		if err := ins.Git.CloneNoCheckout(ctx, src.CloneURL, tempDir); err != nil {
			return "", err
		}

	case gitremote.KindLocalPath:
		if err := copyDir(expandHome(src.Path), tempDir); err != nil {
			os.RemoveAll(tempDir)
			return "", &zerrors.FSError{Kind: zerrors.PermissionDenied, Path: src.Path, Err: err}
		}

	case gitremote.KindSignedRelease:
		if err := ins.stageSignedRelease(ctx, src, tempDir); err != nil {
			os.RemoveAll(tempDir)
			return "", err
		}

	default:
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("unhandled install source kind %q", src.Kind)
	}

	return tempDir, nil
}

// stageSignedRelease downloads the release archive and its detached
// signature, verifies the archive against the trust anchor, and
// extracts it. The archive is never extracted before verification
// succeeds.
func (ins *Installer) stageSignedRelease(ctx context.Context, src gitremote.Source, dir string) error {
	if ins.Verifier == nil {
		return &zerrors.PolicyBlock{Reason: zerrors.AgentForbidden, Detail: "no trusted signing key configured for signed releases", Module: src.Raw}
	}

	data, err := fetchBounded(ctx, ins.httpClient(), src.CloneURL, maxReleaseArchiveSize)
	if err != nil {
		return &zerrors.GitError{Kind: zerrors.CloneFailed, URL: src.CloneURL, Err: err}
	}

	sig, err := signing.FetchSignature(ctx, src.CloneURL+".sig")
	if err != nil {
		return &zerrors.GitError{Kind: zerrors.CloneFailed, URL: src.CloneURL, Err: fmt.Errorf("fetch detached signature: %w", err)}
	}

	if err := ins.Verifier.VerifyBytes(data, sig); err != nil {
		return &zerrors.PolicyBlock{Reason: zerrors.CriticalFindings, Detail: err.Error(), Module: src.Raw}
	}

	return extractArchive(data, src.CloneURL, dir)
}

func fetchBounded(ctx context.Context, client *http.Client, url string, max int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("response exceeds maximum size of %d bytes", max)
	}
	return data, nil
}

// scanAndValidate runs the security scan, manifest parse, and dependency
// validate phases against the staged directory, in that order, aborting
// at the first failure.
func (ins *Installer) scanAndValidate(ctx context.Context, dir string, opts Options) (*Result, error) {
	deadline := time.Now().Add(ins.scanTimeout())
	scanResult, err := scanner.Scan(ctx, dir, deadline, ins.Trusted)
	if err != nil {
		return nil, err
	}

	result := &Result{Findings: scanResult.Findings, Policy: scanResult.PolicyRecommendation}

	switch scanResult.PolicyRecommendation {
	case scanner.PolicyBlock:
		if !opts.Unsafe {
			return result, &zerrors.PolicyBlock{Reason: zerrors.CriticalFindings, Detail: "scan found critical findings", Module: dir}
		}
		if ins.Session.Role == session.RoleAgent {
			return result, &zerrors.PolicyBlock{Reason: zerrors.AgentForbidden, Detail: "agent actor may not pass --unsafe", Module: dir}
		}
	case scanner.PolicyWarn:
		if !opts.Yes && !session.RequireConfirmation(ins.Confirm, "module scan produced warnings; proceed?") {
			return result, &zerrors.PolicyBlock{Reason: zerrors.WarningsRequireConfirmation, Detail: "scan found warnings requiring confirmation", Module: dir}
		}
	}

	mod, err := manifest.Parse(dir)
	if err != nil {
		return result, err
	}
	result.Module = mod

	existing, _, err := graph.Discover(ins.Config.ModulesDir, ins.Cache)
	if err != nil {
		return result, &zerrors.FSError{Kind: zerrors.PermissionDenied, Path: ins.Config.ModulesDir, Err: err}
	}
	all := make([]*manifest.Module, 0, len(existing)+1)
	for _, m := range existing {
		if m.Name != mod.Name {
			all = append(all, m)
		}
	}
	all = append(all, mod.Clone())
	if _, err := graph.Resolve(all); err != nil {
		return result, err
	}

	return result, nil
}

// checkoutIfGit populates the working tree for a git-based source. Local
// copies and extracted release archives are already fully materialized.
func (ins *Installer) checkoutIfGit(ctx context.Context, src gitremote.Source, dir string) error {
	switch src.Kind {
	case gitremote.KindGitHubShorthand, gitremote.KindGitHTTPS, gitremote.KindGitSSH:
		return ins.Git.Checkout(ctx, dir)
	default:
		return nil
	}
}

func (ins *Installer) recordResult(action audit.Action, source string, result *Result, opErr error) {
	module := ""
	if result != nil && result.Module != nil {
		module = result.Module.Name
	}
	ins.recordOutcome(action, module, source, result, opErr)
}

func (ins *Installer) recordFailure(action audit.Action, module, source string, opErr error) {
	ins.recordOutcome(action, module, source, nil, opErr)
}

func (ins *Installer) recordOutcome(action audit.Action, module, source string, result *Result, opErr error) {
	if ins.Audit == nil {
		return
	}
	rec := audit.NewRecord(action, ins.Session.SessionID, actorName(ins.Session), string(ins.Session.Role), module, source)
	rec.Success = opErr == nil
	if opErr != nil {
		rec.Reason = opErr.Error()
	}
	if result != nil {
		for _, f := range result.Findings {
			switch f.Severity {
			case scanner.SeverityCritical:
				rec.Critical++
			case scanner.SeverityWarning:
				rec.Warning++
			}
		}
	}
	ins.Audit.Append(rec)
}

func actorName(info session.Info) string {
	if info.SessionID != "" {
		return info.SessionID
	}
	return string(info.Role)
}
