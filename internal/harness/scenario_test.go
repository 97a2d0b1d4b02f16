package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "One write"
steps:
  - op: set_value
    args: [open, true]
assertions:
  - type: value
    value_id: open
    expect: true
`

func TestParseScenario_Minimal(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	require.Len(t, scenario.Steps, 1)
	assert.Equal(t, "set_value", scenario.Steps[0].Op)
	assert.Len(t, scenario.Steps[0].Args, 2)
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{op: del_tables}]\nassertions: [{type: content}]",
			wantMsg: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps: [{op: del_tables}]\nassertions: [{type: content}]",
			wantMsg: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\nassertions: [{type: content}]",
			wantMsg: "steps list is required",
		},
		{
			name:    "no assertions",
			yaml:    "name: n\ndescription: d\nsteps: [{op: del_tables}]",
			wantMsg: "assertions list is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: n\ndescription: d\nsteps: [{op: explode}]\nassertions: [{type: content}]",
			wantMsg: `unknown op "explode"`,
		},
		{
			name:    "wrong arity",
			yaml:    "name: n\ndescription: d\nsteps: [{op: set_row, args: [pets]}]\nassertions: [{type: content}]",
			wantMsg: "set_row takes 3 args, got 1",
		},
		{
			name:    "op and transaction",
			yaml:    "name: n\ndescription: d\nsteps: [{op: del_tables, transaction: [{op: del_values}]}]\nassertions: [{type: content}]",
			wantMsg: "mutually exclusive",
		},
		{
			name:    "rollback without transaction",
			yaml:    "name: n\ndescription: d\nsteps: [{op: del_tables, rollback: true}]\nassertions: [{type: content}]",
			wantMsg: "rollback requires a transaction",
		},
		{
			name:    "nested step",
			yaml:    "name: n\ndescription: d\nsteps: [{transaction: [{op: nope}]}]\nassertions: [{type: content}]",
			wantMsg: "steps[0].transaction[0]: unknown op",
		},
		{
			name:    "expect on other op",
			yaml:    "name: n\ndescription: d\nsteps: [{op: del_tables, expect: '0'}]\nassertions: [{type: content}]",
			wantMsg: "expect is only supported by add_row",
		},
		{
			name:    "unknown category",
			yaml:    "name: n\ndescription: d\nlisteners: [{id: l, category: cells}]\nsteps: [{op: del_tables}]\nassertions: [{type: content}]",
			wantMsg: `unknown listener category "cells"`,
		},
		{
			name:    "path length",
			yaml:    "name: n\ndescription: d\nlisteners: [{id: l, category: cell, path: [pets]}]\nsteps: [{op: del_tables}]\nassertions: [{type: content}]",
			wantMsg: "cell takes 3 path segments, got 1",
		},
		{
			name:    "duplicate listener",
			yaml:    "name: n\ndescription: d\nlisteners: [{id: l, category: tables}, {id: l, category: values}]\nsteps: [{op: del_tables}]\nassertions: [{type: content}]",
			wantMsg: `duplicate id "l"`,
		},
		{
			name:    "transaction mutator",
			yaml:    "name: n\ndescription: d\nlisteners: [{id: l, category: didFinishTransaction, mutator: true}]\nsteps: [{op: del_tables}]\nassertions: [{type: content}]",
			wantMsg: "cannot be mutators",
		},
		{
			name:    "assertion on unknown listener",
			yaml:    "name: n\ndescription: d\nsteps: [{op: del_tables}]\nassertions: [{type: fired, listener: ghost}]",
			wantMsg: `unknown listener "ghost"`,
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nsteps: [{op: del_tables}]\nassertions: [{type: final_state}]",
			wantMsg: `unknown assertion type "final_state"`,
		},
		{
			name:    "cell assertion without address",
			yaml:    "name: n\ndescription: d\nsteps: [{op: del_tables}]\nassertions: [{type: cell, table: pets}]",
			wantMsg: "table, row and cell are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadScenario_ResolvesSchemaPath(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/schema_defaults.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "pets.cue"), scenario.Schema)
}

func TestLoadScenario_MissingSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema: nope.cue\n"+minimalScenario), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema file not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
