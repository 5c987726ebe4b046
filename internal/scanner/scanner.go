// Package scanner performs static pattern analysis over a module's shell
// files, producing a severity-classified verdict. It never executes file
// content and never follows a symlink outside the directory it was asked
// to scan.
package scanner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

const (
	maxLineLength = 8 * 1024
	maxFileSize   = 1 * 1024 * 1024
	maxFilesGuard = 20000
	schemaVersion = "1.0"
)

// binaryExtensions are skipped without being opened for matching.
var binaryExtensions = map[string]bool{
	".so": true, ".dylib": true, ".a": true, ".o": true, ".bin": true,
	".exe": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".ico": true, ".pdf": true, ".zip": true, ".gz": true, ".tar": true,
	".woff": true, ".woff2": true, ".ttf": true,
}

var cicdPathSuffixes = []string{
	".github/workflows",
	".gitlab-ci.yml",
	".circleci/config.yml",
}

var contextDowngradeFiles = map[string]bool{
	"Makefile": true, "CMakeLists.txt": true, "build.sh": true,
	"Dockerfile": true, "package.json": true,
}

// Finding is one scanner hit. Fields are stable within a schema major
// version; consumers of the JSON encoding must ignore unknown fields.
type Finding struct {
	PatternID            string   `json:"pattern_id"`
	Severity             Severity `json:"severity"`
	File                 string   `json:"file"`
	Line                 int      `json:"line"`
	Description          string   `json:"description"`
	Categories           []string `json:"categories,omitempty"`
	TrustedModuleApplied bool     `json:"trusted_module_applied,omitempty"`
}

// PolicyRecommendation is the scanner's verdict passed on to the install
// pipeline.
type PolicyRecommendation string

const (
	PolicyAllow PolicyRecommendation = "allow"
	PolicyWarn  PolicyRecommendation = "warn"
	PolicyBlock PolicyRecommendation = "block"
)

// Result is the full scan report.
type Result struct {
	SchemaVersion         string               `json:"schema_version"`
	Findings              []Finding            `json:"findings"`
	CredentialFindings    []Finding            `json:"credential_findings,omitempty"`
	ReverseShellFindings  []Finding            `json:"reverse_shell_findings,omitempty"`
	CICDFindings          []Finding            `json:"cicd_findings,omitempty"`
	TrustedModuleApplied  bool                 `json:"trusted_module_applied"`
	FilesScanned          int                  `json:"files_scanned"`
	LinesScanned          int                  `json:"lines_scanned"`
	PolicyRecommendation  PolicyRecommendation `json:"policy_recommendation"`
	ExitCodeHint          int                  `json:"exit_code_hint"`
	DurationMs            int64                `json:"duration_ms"`
}

// categorize splits findings into the typed subsets the spec's Scan
// Result carries alongside the flat list, and reports whether any
// finding had a trust relaxation applied.
func categorize(findings []Finding) (credentials, reverseShells, cicd []Finding, trustedApplied bool) {
	for _, f := range findings {
		if f.TrustedModuleApplied {
			trustedApplied = true
		}
		for _, c := range f.Categories {
			switch c {
			case "credentials":
				credentials = append(credentials, f)
			case "reverse_shell":
				reverseShells = append(reverseShells, f)
			case "cicd":
				cicd = append(cicd, f)
			}
		}
	}
	return credentials, reverseShells, cicd, trustedApplied
}

// fileContext accumulates per-file state needed for coupling, credential
// escalation, and context-aware downgrades.
type fileContext struct {
	relPath        string
	baseName       string
	isCICD         bool
	matchedIDs     map[string]bool
	hasCredential  bool
	hasExfil       bool
	hasCICDSecret  bool
	raw            []Finding
}

// Scan walks root, matching every regular text file against the pattern
// table, the credential detector, the reverse-shell detector, and (for
// CI/CD paths) the CI/CD detector. deadline is a wall-clock cutoff;
// expiry aborts the scan and discards any partial findings.
func Scan(ctx context.Context, root string, deadline time.Time, trusted *TrustedModules) (*Result, error) {
	start := time.Now()
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &zerrors.ScanError{Kind: zerrors.ScanIOError, Path: root, Err: err}
	}

	var filesScanned, linesScanned, fileCount int
	var findings []Finding

	walkErr := filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return &zerrors.ScanError{Kind: zerrors.ScanIOError, Path: path, Err: err}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return &zerrors.ScanError{Kind: zerrors.ScanTimeout, Path: path}
		}
		select {
		case <-ctx.Done():
			return &zerrors.ScanError{Kind: zerrors.ScanTimeout, Path: path, Err: ctx.Err()}
		default:
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(path)
			if err != nil || !withinRoot(absRoot, target) {
				rel, _ := filepath.Rel(absRoot, path)
				findings = append(findings, Finding{
					PatternID:   "fs.symlink_escape",
					Severity:    SeverityCritical,
					File:        rel,
					Line:        0,
					Description: "symlink target escapes the scanned module root",
					Categories:  []string{"filesystem"},
				})
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		fileCount++
		if fileCount > maxFilesGuard {
			return &zerrors.ScanError{Kind: zerrors.ScanTooManyFiles, Path: absRoot}
		}

		rel, _ := filepath.Rel(absRoot, path)
		if isBinary(path, info) {
			findings = append(findings, Finding{
				PatternID:   "fs.binary_skipped",
				Severity:    SeverityInfo,
				File:        rel,
				Line:        0,
				Description: "file classified as binary or oversized, not scanned",
			})
			return nil
		}

		fc := &fileContext{
			relPath:    rel,
			baseName:   filepath.Base(path),
			isCICD:     isCICDPath(rel),
			matchedIDs: make(map[string]bool),
		}

		nLines, err := scanFile(path, fc)
		if err != nil {
			return &zerrors.ScanError{Kind: zerrors.ScanIOError, Path: path, Err: err}
		}
		linesScanned += nLines
		filesScanned++

		applyEscalations(fc)
		applyContextDowngrade(fc)
		applyTrustRelaxation(fc, absRoot, trusted)
		findings = append(findings, fc.raw...)
		return nil
	})

	if walkErr != nil {
		var scanErr *zerrors.ScanError
		if errors.As(walkErr, &scanErr) {
			return nil, scanErr
		}
		return nil, &zerrors.ScanError{Kind: zerrors.ScanIOError, Path: absRoot, Err: walkErr}
	}

	sortFindings(findings)
	rec, hint := derivePolicy(findings, false)
	credFindings, rsFindings, cicdFindings, trustedApplied := categorize(findings)
	return &Result{
		SchemaVersion:        schemaVersion,
		Findings:             findings,
		CredentialFindings:   credFindings,
		ReverseShellFindings: rsFindings,
		CICDFindings:         cicdFindings,
		TrustedModuleApplied: trustedApplied,
		FilesScanned:         filesScanned,
		LinesScanned:         linesScanned,
		PolicyRecommendation: rec,
		ExitCodeHint:         hint,
		DurationMs:           time.Since(start).Milliseconds(),
	}, nil
}

// ScanCommand treats cmd as a single virtual one-line file. It uses the
// inverted exit mapping documented for quick shell-side checks:
// critical->1, warning->2, else 0.
func ScanCommand(cmd string, trusted *TrustedModules) *Result {
	fc := &fileContext{relPath: "<command>", baseName: "<command>", matchedIDs: make(map[string]bool)}
	matchLine(cmd, 1, fc)
	applyEscalations(fc)
	applyTrustRelaxation(fc, "", trusted)

	findings := append([]Finding(nil), fc.raw...)
	sortFindings(findings)
	rec, hint := derivePolicy(findings, true)
	credFindings, rsFindings, cicdFindings, trustedApplied := categorize(findings)
	return &Result{
		SchemaVersion:        schemaVersion,
		Findings:             findings,
		CredentialFindings:   credFindings,
		ReverseShellFindings: rsFindings,
		CICDFindings:         cicdFindings,
		TrustedModuleApplied: trustedApplied,
		FilesScanned:         1,
		LinesScanned:         1,
		PolicyRecommendation: rec,
		ExitCodeHint:         hint,
	}
}

func scanFile(path string, fc *fileContext) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if len(line) > maxLineLength {
			line = line[:maxLineLength]
		}
		matchLine(line, lineNo, fc)
	}
	if err := scanner.Err(); err != nil {
		return lineNo, err
	}
	return lineNo, nil
}

func matchLine(line string, lineNo int, fc *fileContext) {
	for _, p := range patternTable {
		if p.re.MatchString(line) {
			fc.matchedIDs[p.id] = true
			fc.raw = append(fc.raw, Finding{
				PatternID:   p.id,
				Severity:    p.severity,
				File:        fc.relPath,
				Line:        lineNo,
				Description: p.description,
				Categories:  p.categories,
			})
		}
	}

	for _, p := range credentialPatterns {
		if p.re.MatchString(line) {
			fc.hasCredential = true
			fc.matchedIDs[p.id] = true
			fc.raw = append(fc.raw, Finding{
				PatternID:   p.id,
				Severity:    SeverityWarning,
				File:        fc.relPath,
				Line:        lineNo,
				Description: p.description,
				Categories:  []string{"credentials"},
			})
		}
	}
	for _, re := range exfiltrationPatterns {
		if re.MatchString(line) {
			fc.hasExfil = true
		}
	}

	for _, p := range reverseShellPatterns {
		if p.re.MatchString(line) {
			fc.raw = append(fc.raw, Finding{
				PatternID:   p.id,
				Severity:    SeverityCritical,
				File:        fc.relPath,
				Line:        lineNo,
				Description: p.description,
				Categories:  []string{"reverse_shell"},
			})
		}
	}

	if fc.isCICD {
		for _, re := range cicdSecretTokens {
			if re.MatchString(line) {
				fc.hasCICDSecret = true
			}
		}
	}
}

// applyEscalations implements pattern coupling: a pattern whose partner
// set intersects the file's matched ids is re-emitted at escalateTo.
// Credential findings escalate independently when exfiltration or any
// RCE/transport pattern co-occurs in the file.
func applyEscalations(fc *fileContext) {
	for i := range fc.raw {
		f := &fc.raw[i]
		for _, p := range patternTable {
			if p.id != f.PatternID || len(p.escalatesWith) == 0 {
				continue
			}
			for _, partner := range p.escalatesWith {
				if fc.matchedIDs[partner] {
					f.Severity = p.escalateTo
					break
				}
			}
		}
	}

	hasRCEOrTransport := fc.matchedIDs["rce.curl_pipe_bash"] || fc.matchedIDs["rce.wget_pipe_shell"] ||
		fc.matchedIDs["rce.eval_curl"] || fc.matchedIDs["rce.process_substitution_curl"] ||
		fc.matchedIDs["transport.curl_http"] || fc.matchedIDs["transport.wget_http"]

	if fc.hasCredential && (fc.hasExfil || hasRCEOrTransport) {
		for i := range fc.raw {
			f := &fc.raw[i]
			if len(f.Categories) == 1 && f.Categories[0] == "credentials" {
				f.Severity = SeverityCritical
			}
		}
	}

	if fc.isCICD {
		presence := Finding{
			PatternID:   "cicd.pipeline_modified",
			Severity:    SeverityWarning,
			File:        fc.relPath,
			Line:        0,
			Description: "CI/CD pipeline definition modified or created",
			Categories:  []string{"cicd"},
		}
		if fc.hasCICDSecret {
			presence.Severity = SeverityCritical
			presence.Description = "CI/CD pipeline definition modified alongside secret references"
		}
		fc.raw = append(fc.raw, presence)
	}
}

// applyContextDowngrade downgrades a critical curl|sh finding by one step
// in build-tooling files, unless credentials were also found in the file.
func applyContextDowngrade(fc *fileContext) {
	if !contextDowngradeFiles[fc.baseName] || fc.hasCredential {
		return
	}
	for i := range fc.raw {
		f := &fc.raw[i]
		if (f.PatternID == "rce.curl_pipe_bash" || f.PatternID == "rce.wget_pipe_shell") && f.Severity == SeverityCritical {
			f.Severity = SeverityWarning
			f.Description += " (downgraded: matched inside a build script, no credentials present)"
		}
	}
}

// applyTrustRelaxation downgrades critical findings whose pattern id is
// exempted for the module directory named by root.
func applyTrustRelaxation(fc *fileContext, root string, trusted *TrustedModules) {
	if trusted == nil || root == "" {
		return
	}
	for i := range fc.raw {
		f := &fc.raw[i]
		if f.Severity != SeverityCritical {
			continue
		}
		if trusted.Relaxes(root, f.PatternID) {
			f.Severity = SeverityWarning
			f.TrustedModuleApplied = true
		}
	}
}

// derivePolicy is a pure function of findings: block iff a critical
// finding exists, warn iff no critical but a warning exists, else allow.
// commandMode selects the inverted exit code mapping documented for
// single-command scans.
func derivePolicy(findings []Finding, commandMode bool) (PolicyRecommendation, int) {
	hasCritical, hasWarning := false, false
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			hasCritical = true
		case SeverityWarning:
			hasWarning = true
		}
	}

	var rec PolicyRecommendation
	switch {
	case hasCritical:
		rec = PolicyBlock
	case hasWarning:
		rec = PolicyWarn
	default:
		rec = PolicyAllow
	}

	if commandMode {
		switch rec {
		case PolicyBlock:
			return rec, 1
		case PolicyWarn:
			return rec, 2
		default:
			return rec, 0
		}
	}
	switch rec {
	case PolicyBlock:
		return rec, 2
	case PolicyWarn:
		return rec, 1
	default:
		return rec, 0
	}
}

func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.rank() != findings[j].Severity.rank() {
			return findings[i].Severity.rank() > findings[j].Severity.rank()
		}
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].Line < findings[j].Line
	})
}

func isBinary(path string, info os.FileInfo) bool {
	if info.Size() > maxFileSize {
		return true
	}
	if binaryExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()
	buf := make([]byte, 4096)
	n, _ := f.Read(buf)
	return bytes.IndexByte(buf[:n], 0) != -1
}

func withinRoot(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isCICDPath(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, suffix := range cicdPathSuffixes {
		if strings.Contains(rel, suffix) {
			return true
		}
	}
	return false
}
