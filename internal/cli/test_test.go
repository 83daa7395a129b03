package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harnessScenarios is the harness package's own scenario suite.
var harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")

func TestTestCommandMissingArgs(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/scenarios"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	require.NoError(t, cmd.Execute())

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandRunsHarnessSuite(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{harnessScenarios})

	require.NoError(t, cmd.Execute(), buf.String())

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, 0, response.Data.Failed)
	assert.GreaterOrEqual(t, response.Data.Passed, 3)
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	goldenDir := t.TempDir()

	run := func(extra ...string) (string, error) {
		buf := &bytes.Buffer{}
		cmd := NewTestCommand(&RootOptions{Format: "text"})
		cmd.SetOut(buf)
		cmd.SetArgs(append([]string{harnessScenarios, "--golden", goldenDir, "--filter", "retain_*"}, extra...))
		err := cmd.Execute()
		return buf.String(), err
	}

	out, err := run("--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ retain_policy_repeat (golden updated)")

	golden := filepath.Join(goldenDir, "retain_policy_repeat.golden")
	require.FileExists(t, golden)

	out, err = run()
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario_name":"retain_policy_repeat","trace":[]}`), 0o644))
	out, err = run()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandReportsLoadErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0o644))

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ broken.yaml")
	assert.Contains(t, buf.String(), "failed to load scenario")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "civ-one.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "civ-two.yml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "aggregate.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte(""), 0o644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = findScenarioFiles(tmpDir, "civ-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
