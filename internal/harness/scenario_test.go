package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Fixture(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/widget_lifecycle.yaml")
	require.NoError(t, err)

	assert.Equal(t, "widget_lifecycle", s.Name)
	assert.Equal(t, int64(1), s.StoreID)
	require.Len(t, s.Steps, 8)
	assert.Equal(t, OpAdd, s.Steps[0].Op)
	assert.Equal(t, "w1", s.Steps[0].Widget.WidgetID)
	assert.Equal(t, int64(100), s.Steps[1].Position.Width)
	require.NotNil(t, s.Steps[6].Expect.OK)
	assert.False(t, *s.Steps[6].Expect.OK)
	assert.Len(t, s.Assertions, 5)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadScenario_ResolvesSchemaPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.cue"), []byte("table: {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.yaml"), []byte(`
name: s
description: d
schema: widget.cue
steps:
  - op: undo
`), 0o644))

	s, err := LoadScenario(filepath.Join(dir, "s.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "widget.cue"), s.Schema)
}

func TestLoadScenario_SchemaNotFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.yaml"), []byte(`
name: s
description: d
schema: missing.cue
steps:
  - op: undo
`), 0o644))

	_, err := LoadScenario(filepath.Join(dir, "s.yaml"))
	assert.ErrorContains(t, err, "schema file not found")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: s\ndescription: d\nstep: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{op: undo}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: s\nsteps: [{op: undo}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: s\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "negative history",
			yaml:    "name: s\ndescription: d\nmax_history: -1\nsteps: [{op: undo}]\n",
			wantErr: "max_history must be non-negative",
		},
		{
			name:    "unknown op",
			yaml:    "name: s\ndescription: d\nsteps: [{op: resize}]\n",
			wantErr: `unknown op "resize"`,
		},
		{
			name:    "add without widget",
			yaml:    "name: s\ndescription: d\nsteps: [{op: add}]\n",
			wantErr: "widget is required for add",
		},
		{
			name:    "move without position",
			yaml:    "name: s\ndescription: d\nsteps: [{op: move, id: w1}]\n",
			wantErr: "id and position are required for move",
		},
		{
			name:    "delete without id",
			yaml:    "name: s\ndescription: d\nsteps: [{op: delete}]\n",
			wantErr: "id is required for delete",
		},
		{
			name:    "unknown error kind",
			yaml:    "name: s\ndescription: d\nsteps: [{op: undo, expect: {error: boom}}]\n",
			wantErr: `unknown error kind "boom"`,
		},
		{
			name:    "assertion without type",
			yaml:    "name: s\ndescription: d\nsteps: [{op: undo}]\nassertions: [{id: w1}]\n",
			wantErr: "type is required",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: s\ndescription: d\nsteps: [{op: undo}]\nassertions: [{type: trace_order}]\n",
			wantErr: `unknown assertion type "trace_order"`,
		},
		{
			name:    "widget assertion without expect",
			yaml:    "name: s\ndescription: d\nsteps: [{op: undo}]\nassertions: [{type: widget, id: w1}]\n",
			wantErr: "id and expect are required for widget",
		},
		{
			name:    "count assertion without count",
			yaml:    "name: s\ndescription: d\nsteps: [{op: undo}]\nassertions: [{type: history}]\n",
			wantErr: "non-negative count is required for history",
		},
		{
			name:    "negative evicted",
			yaml:    "name: s\ndescription: d\nsteps: [{op: undo}]\nassertions: [{type: history, count: 0, evicted: -1}]\n",
			wantErr: "evicted must be non-negative",
		},
		{
			name:    "live widgets without ids",
			yaml:    "name: s\ndescription: d\nsteps: [{op: undo}]\nassertions: [{type: live_widgets}]\n",
			wantErr: "ids is required for live_widgets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_EmptyIDsAllowed(t *testing.T) {
	s, err := ParseScenario([]byte("name: s\ndescription: d\nsteps: [{op: undo}]\nassertions: [{type: live_widgets, ids: []}]\n"))
	require.NoError(t, err)
	assert.NotNil(t, s.Assertions[0].IDs)
	assert.Empty(t, s.Assertions[0].IDs)
}
