package functional

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

func writeManifest(modulesDir, name string, body string) error {
	dir := filepath.Join(modulesDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "module.toml"), []byte(body), 0o644)
}

func aModuleWithPriority(ctx context.Context, name string, priority int) error {
	s := getState(ctx)
	body := fmt.Sprintf("[module]\nname = %q\nversion = \"1.0.0\"\n\n[load]\npriority = %d\n", name, priority)
	return writeManifest(s.modulesDir, name, body)
}

func aModuleWithPriorityRequiring(ctx context.Context, name string, priority int, requires string) error {
	s := getState(ctx)
	deps := strings.Split(requires, ",")
	for i := range deps {
		deps[i] = strconv.Quote(strings.TrimSpace(deps[i]))
	}
	body := fmt.Sprintf("[module]\nname = %q\nversion = \"1.0.0\"\n\n[dependencies]\nrequired = [%s]\n\n[load]\npriority = %d\n",
		name, strings.Join(deps, ", "), priority)
	return writeManifest(s.modulesDir, name, body)
}

func theModuleContainsTheFileWith(ctx context.Context, moduleName, fileName string, contents *godog.DocString) error {
	s := getState(ctx)
	dir := filepath.Join(s.modulesDir, moduleName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fileName), []byte(contents.Content), 0o644)
}

func iRun(ctx context.Context, command string) (context.Context, error) {
	s := getState(ctx)
	if s == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	command = strings.ReplaceAll(command, "<modulesdir>", s.modulesDir)
	args := splitCommand(command)
	if len(args) == 0 {
		return ctx, fmt.Errorf("empty command")
	}
	if args[0] == "zephyr" {
		args[0] = s.binPath
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(),
		"ZSH_MODULES_DIR="+s.modulesDir,
		"HOME="+filepath.Dir(s.modulesDir),
		"ZEPHYR_SIGNING_KEY=",
	)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	s.stdout = stdout.String()
	s.stderr = stderr.String()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			s.exitCode = exitErr.ExitCode()
		} else {
			return ctx, fmt.Errorf("running command: %w", err)
		}
	} else {
		s.exitCode = 0
	}
	return ctx, nil
}

// splitCommand tokenizes a step's command string, honoring double-quoted
// substrings so "zephyr scan \"rm -rf /\"" passes the quoted part to the
// binary as one argument instead of splitting it on whitespace.
func splitCommand(s string) []string {
	var args []string
	var cur strings.Builder
	inQuotes := false
	hasToken := false
	for _, r := range s {
		switch {
		case r == '"' || r == '\'':
			inQuotes = !inQuotes
			hasToken = true
		case r == ' ' && !inQuotes:
			if hasToken {
				args = append(args, cur.String())
				cur.Reset()
				hasToken = false
			}
		default:
			cur.WriteRune(r)
			hasToken = true
		}
	}
	if hasToken {
		args = append(args, cur.String())
	}
	return args
}

func theExitCodeIs(ctx context.Context, expected int) error {
	s := getState(ctx)
	if s.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s", expected, s.exitCode, s.stdout, s.stderr)
	}
	return nil
}

func theOutputContains(ctx context.Context, text string) error {
	s := getState(ctx)
	if !strings.Contains(s.stdout, text) {
		return fmt.Errorf("expected stdout to contain %q, got:\n%s", text, s.stdout)
	}
	return nil
}

func theErrorOutputContains(ctx context.Context, text string) error {
	s := getState(ctx)
	if !strings.Contains(s.stderr, text) {
		return fmt.Errorf("expected stderr to contain %q, got:\n%s", text, s.stderr)
	}
	return nil
}

