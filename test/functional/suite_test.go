// Package functional drives the compiled zephyr binary end to end
// through godog, running the scenarios under features/ rather than
// exercising internal packages directly.
package functional

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"
)

type stateKeyType struct{}

var stateKey = stateKeyType{}

type testState struct {
	binPath    string
	modulesDir string
	stdout     string
	stderr     string
	exitCode   int
}

func getState(ctx context.Context) *testState {
	s, _ := ctx.Value(stateKey).(*testState)
	return s
}

func setState(ctx context.Context, s *testState) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

func TestFeatures(t *testing.T) {
	binPath := os.Getenv("ZEPHYR_TEST_BINARY")
	if binPath == "" {
		t.Skip("ZEPHYR_TEST_BINARY not set; run via 'make test-functional'")
	}
	absBin, err := filepath.Abs(binPath)
	if err != nil {
		t.Fatalf("resolving binary path: %v", err)
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			initializeScenario(ctx, absBin)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("functional tests failed")
	}
}

func initializeScenario(ctx *godog.ScenarioContext, binPath string) {
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		home, err := os.MkdirTemp("", "zephyr-functional-")
		if err != nil {
			return ctx, err
		}
		modulesDir := filepath.Join(home, "modules")
		if err := os.MkdirAll(modulesDir, 0o755); err != nil {
			return ctx, err
		}
		return setState(ctx, &testState{binPath: binPath, modulesDir: modulesDir}), nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if s := getState(ctx); s != nil {
			os.RemoveAll(filepath.Dir(s.modulesDir))
		}
		return ctx, err
	})

	ctx.Step(`^a module "([^"]*)" with priority (\d+) requiring "([^"]*)"$`, aModuleWithPriorityRequiring)
	ctx.Step(`^a module "([^"]*)" with priority (\d+)$`, aModuleWithPriority)
	ctx.Step(`^the module "([^"]*)" contains the file "([^"]*)" with:$`, theModuleContainsTheFileWith)
	ctx.Step(`^I run "([^"]*)"$`, iRun)
	ctx.Step(`^the exit code is (\d+)$`, theExitCodeIs)
	ctx.Step(`^the output contains "([^"]*)"$`, theOutputContains)
	ctx.Step(`^the error output contains "([^"]*)"$`, theErrorOutputContains)
}
