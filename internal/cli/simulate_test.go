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

const scenarioDir = "../../testdata/scenarios"

func runSimulateCmd(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewSimulateCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSimulateDirectory(t *testing.T) {
	out, err := runSimulateCmd(t, &RootOptions{Format: "json"}, scenarioDir)
	require.NoError(t, err)

	res := decodeSimulate(t, out)
	assert.Positive(t, res.Total)
	assert.Equal(t, res.Total, res.Passed)
	assert.Zero(t, res.Failed)
}

func TestSimulateSingleFileShow(t *testing.T) {
	out, err := runSimulateCmd(t, &RootOptions{Format: "text"},
		filepath.Join(scenarioDir, "trailing_surplus.yaml"), "--show")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ trailing_surplus")
	assert.Contains(t, out, "1 passed")
}

func TestSimulateFilter(t *testing.T) {
	out, err := runSimulateCmd(t, &RootOptions{Format: "json"}, scenarioDir, "--filter", "trailing*")
	require.NoError(t, err)

	res := decodeSimulate(t, out)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Scenarios, 1)
	assert.Equal(t, "trailing_surplus", res.Scenarios[0].Name)
}

func TestSimulateMissingPath(t *testing.T) {
	_, err := runSimulateCmd(t, &RootOptions{Format: "text"}, "does/not/exist")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulateEmptyDirectory(t *testing.T) {
	out, err := runSimulateCmd(t, &RootOptions{Format: "text"}, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestSimulateGoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(filepath.Join(scenarioDir, "trailing_surplus.yaml"))
	require.NoError(t, err)
	scenario := filepath.Join(dir, "trailing_surplus.yaml")
	require.NoError(t, os.WriteFile(scenario, data, 0644))

	_, err = runSimulateCmd(t, &RootOptions{Format: "text"}, scenario, "--update")
	require.NoError(t, err)
	golden := filepath.Join(dir, "golden", "trailing_surplus.golden")
	require.FileExists(t, golden)

	_, err = runSimulateCmd(t, &RootOptions{Format: "text"}, scenario)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("stale\n"), 0644))
	out, err := runSimulateCmd(t, &RootOptions{Format: "text"}, scenario)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestSimulateBrokenScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0644))

	out, err := runSimulateCmd(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Contains(t, out, "Load error")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "golden", "x.golden"), goldenFilePath(filepath.Join("a", "b", "x.yaml")))
}

func decodeSimulate(t *testing.T, out string) SimulateResult {
	t.Helper()
	var resp struct {
		Status string         `json:"status"`
		Data   SimulateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}
