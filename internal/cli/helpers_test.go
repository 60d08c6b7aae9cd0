package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	lifecycleScenario = "../harness/testdata/scenarios/widget_lifecycle.yaml"
	scenariosDir      = "../harness/testdata/scenarios"
	goldenDir         = "../harness/testdata/golden"
)

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const failingScenario = `name: failing
description: expects a widget that is never added
steps:
  - op: add
    widget: {widget_id: a, notebook_id: n, cell_id: c}
assertions:
  - type: live_widgets
    ids: [a, b]
`

const twoWidgetScenario = `name: two_widgets
description: two widgets on one notebook, one deleted
store_id: 7
steps:
  - op: add
    widget: {widget_id: a, notebook_id: nb, cell_id: c1, left: 5, top: 6}
  - op: add
    widget: {widget_id: b, notebook_id: nb, cell_id: c2, width: 300, height: 200}
  - op: add
    widget: {widget_id: c, notebook_id: other, cell_id: c3}
  - op: delete
    id: c
    expect: {ok: true}
assertions:
  - type: live_widgets
    ids: [a, b]
`
