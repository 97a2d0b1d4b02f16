package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoldenScenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshotIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/mutator_rollback.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestSnapshotOmitsEmptyFields(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{Seq: 1, Listener: "done", Category: "didFinishTransaction"})

	got, err := Snapshot("empty", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"content":[{},{}],"scenario_name":"empty","trace":[{"category":"didFinishTransaction","listener":"done","seq":1}]}`,
		string(got))
}
