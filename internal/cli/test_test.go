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

const harnessTestdata = "../harness/testdata"

const failingScenario = `name: wrong_species
description: "A cell assertion that does not hold"
steps:
  - op: set_cell
    args: [pets, fido, species, dog]
assertions:
  - type: cell
    table: pets
    row: fido
    cell: species
    expect: cat
`

// copyScenario copies a harness scenario and, when withGolden is set, its
// golden file into dir.
func copyScenario(t *testing.T, dir, name string, withGolden bool) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(harnessTestdata, "scenarios", name+".yaml"))
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, name+".yaml"), string(data))

	if !withGolden {
		return
	}
	golden, err := os.ReadFile(filepath.Join(harnessTestdata, "golden", name+".golden"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	writeFile(t, filepath.Join(dir, "golden", name+".golden"), string(golden))
}

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandGoldenMatch(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "cell_lifecycle", true)

	out, err := runTestCommand(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ cell_lifecycle")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandWithoutGolden(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "add_row_ids", false)

	out, err := runTestCommand(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ add_row_ids")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "cell_lifecycle", true)
	writeFile(t, filepath.Join(dir, "golden", "cell_lifecycle.golden"), `{"trace":[]}`)

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ cell_lifecycle")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandUpdate(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "cell_lifecycle", false)

	out, err := runTestCommand(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ cell_lifecycle (golden updated)")

	want, err := os.ReadFile(filepath.Join(harnessTestdata, "golden", "cell_lifecycle.golden"))
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dir, "golden", "cell_lifecycle.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	// The written golden file is used on the next run.
	out, err = runTestCommand(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ cell_lifecycle\n")
}

func TestTestCommandFailingAssertionJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "wrong_species.yaml"), failingScenario)

	out, err := runTestCommand(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeTestFailed, response.Error.Code)
	assert.Equal(t, 1, response.Data.Failed)
	require.Len(t, response.Data.Scenarios, 1)
	scenario := response.Data.Scenarios[0]
	assert.Equal(t, "wrong_species", scenario.Name)
	assert.False(t, scenario.Pass)
	require.Len(t, scenario.Errors, 1)
	assert.Contains(t, scenario.Errors[0], `pets/fido/species = "cat"`)
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: broken\nbogus: true\n")

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "cell_lifecycle", true)
	writeFile(t, filepath.Join(dir, "wrong_species.yaml"), failingScenario)

	out, err := runTestCommand(t, "text", dir, "--filter", "cell_*")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.NotContains(t, out, "wrong_species")
}

func TestTestHelpText(t *testing.T) {
	out, err := runTestCommand(t, "text", "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "scenarios")
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	writeFile(t, filepath.Join(tmpDir, "test1.yaml"), "")
	writeFile(t, filepath.Join(tmpDir, "test2.yml"), "")
	writeFile(t, filepath.Join(tmpDir, "ignore.txt"), "")

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	writeFile(t, filepath.Join(tmpDir, "cascade-delete.yaml"), "")
	writeFile(t, filepath.Join(tmpDir, "cascade-links.yaml"), "")
	writeFile(t, filepath.Join(tmpDir, "sorted-rows.yaml"), "")

	files, err := findScenarioFiles(tmpDir, "cascade-*")
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.Contains(t, filepath.Base(f), "cascade-")
	}

	_, err = findScenarioFiles(tmpDir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	goldenDir := filepath.Join(tmpDir, "golden")
	require.NoError(t, os.MkdirAll(subDir, 0755))
	require.NoError(t, os.MkdirAll(goldenDir, 0755))

	writeFile(t, filepath.Join(tmpDir, "root.yaml"), "")
	writeFile(t, filepath.Join(subDir, "sub.yaml"), "")
	writeFile(t, filepath.Join(goldenDir, "skipped.yaml"), "")

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"/path/to/scenario.yaml", "/path/to/golden/scenario.golden"},
		{"/path/to/scenario.yml", "/path/to/golden/scenario.golden"},
		{"scenarios/test.yaml", "scenarios/golden/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.input))
	}
}
