package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted run against one placement store.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// StoreID is the namespace id given to the store.
	StoreID int64 `yaml:"store_id,omitempty"`

	// MaxHistory caps the undo history; zero keeps all of it.
	MaxHistory int `yaml:"max_history,omitempty"`

	// Schema is an optional CUE file declaring the widget table, used
	// instead of the built-in schema. Relative to the scenario file.
	Schema string `yaml:"schema,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one store operation.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// ID is the target widget (move, delete).
	ID string `yaml:"id,omitempty"`

	// Widget is the widget to create (add).
	Widget *WidgetSpec `yaml:"widget,omitempty"`

	// Position is the new rectangle (move).
	Position *PositionSpec `yaml:"position,omitempty"`

	// Notebook and Cell are the metadata of the dropped cell (place).
	Notebook map[string]string `yaml:"notebook,omitempty"`
	Cell     map[string]string `yaml:"cell,omitempty"`

	// Left and Top are the drop point (place).
	Left int64 `yaml:"left,omitempty"`
	Top  int64 `yaml:"top,omitempty"`

	// Expect checks the step's outcome. Nil means the step must not error.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// WidgetSpec is the YAML form of a widget to add.
type WidgetSpec struct {
	WidgetID   string `yaml:"widget_id"`
	NotebookID string `yaml:"notebook_id"`
	CellID     string `yaml:"cell_id"`
	Left       int64  `yaml:"left,omitempty"`
	Top        int64  `yaml:"top,omitempty"`
	Width      int64  `yaml:"width,omitempty"`
	Height     int64  `yaml:"height,omitempty"`
}

// PositionSpec is the YAML form of a rectangle.
type PositionSpec struct {
	Left   int64 `yaml:"left"`
	Top    int64 `yaml:"top"`
	Width  int64 `yaml:"width"`
	Height int64 `yaml:"height"`
}

// StepExpect specifies the expected outcome of a step.
type StepExpect struct {
	// OK is the expected boolean result of move, delete, undo and redo.
	OK *bool `yaml:"ok,omitempty"`

	// Error is the expected error kind (see errorKind). Empty means the
	// step must succeed.
	Error string `yaml:"error,omitempty"`

	// Count is the expected count returned by mark_persisted and compact.
	Count *int `yaml:"count,omitempty"`

	// ID is the expected minted widget id (place).
	ID string `yaml:"id,omitempty"`
}

// Assertion validates the final state or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// ID is the widget (widget, absent).
	ID string `yaml:"id,omitempty"`

	// IDs is the exact ordered list of live widget ids (live_widgets).
	IDs []string `yaml:"ids,omitempty"`

	// Expect holds expected record fields, subset match (widget).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number (notification_count, history).
	Count *int `yaml:"count,omitempty"`

	// Evicted is the expected number of transactions dropped by
	// max_history (history, optional).
	Evicted *int `yaml:"evicted,omitempty"`

	// Sources is the expected source of every notified change set (sources).
	Sources []string `yaml:"sources,omitempty"`
}

// Step operations.
const (
	OpAdd           = "add"
	OpMove          = "move"
	OpDelete        = "delete"
	OpUndo          = "undo"
	OpRedo          = "redo"
	OpPlace         = "place"
	OpMarkPersisted = "mark_persisted"
	OpCompact       = "compact"
)

// Assertion types.
const (
	AssertLiveWidgets       = "live_widgets"
	AssertWidget            = "widget"
	AssertAbsent            = "absent"
	AssertNotificationCount = "notification_count"
	AssertHistory           = "history"
	AssertSources           = "sources"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields. A relative schema
// path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); err != nil {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.Schema)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxHistory < 0 {
		return fmt.Errorf("max_history must be non-negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch step.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpAdd:
		if step.Widget == nil {
			return fmt.Errorf("steps[%d]: widget is required for add", index)
		}
	case OpMove:
		if step.ID == "" || step.Position == nil {
			return fmt.Errorf("steps[%d]: id and position are required for move", index)
		}
	case OpDelete:
		if step.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for delete", index)
		}
	case OpUndo, OpRedo, OpPlace, OpMarkPersisted, OpCompact:
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	if step.Expect != nil && step.Expect.Error != "" {
		if _, ok := errorKinds[step.Expect.Error]; !ok {
			return fmt.Errorf("steps[%d].expect: unknown error kind %q", index, step.Expect.Error)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertLiveWidgets:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids is required for live_widgets (use [] for none)", index)
		}
	case AssertWidget:
		if a.ID == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: id and expect are required for widget", index)
		}
	case AssertAbsent:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for absent", index)
		}
	case AssertNotificationCount, AssertHistory:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
		if a.Evicted != nil && *a.Evicted < 0 {
			return fmt.Errorf("assertions[%d]: evicted must be non-negative", index)
		}
	case AssertSources:
		if a.Sources == nil {
			return fmt.Errorf("assertions[%d]: sources is required for sources", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
