package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rollcall/internal/roster"
)

// Scenario defines a display reconciliation scenario.
// Scenarios seed a roster and a display surface, run a flow of roster edits
// and passes, and assert on the issued writes and the final surface.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// PassID is an optional fixed pass id. Defaults to "test-pass".
	PassID string `yaml:"pass_id,omitempty"`

	// Title overrides the banner title.
	Title string `yaml:"title,omitempty"`

	// GroupOrder is "definition" (default) or "priority".
	GroupOrder string `yaml:"group_order,omitempty"`

	// MaxSteps overrides the per-block step quota.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// LogSurface configures an operational log surface for diagnostics.
	LogSurface string `yaml:"log_surface,omitempty"`

	// Setup contains roster actions applied before the surface is seeded.
	// Setup actions must succeed.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Surface lists the messages present on the display surface before the
	// flow starts, oldest first.
	Surface []SeedMessage `yaml:"surface,omitempty"`

	// Flow contains the steps under test: roster actions, surface faults and
	// reconcile passes.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final surface and the write log.
	Assertions []Assertion `yaml:"assertions"`
}

// ActionStep represents a single roster action.
type ActionStep struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Args contains the action arguments.
	Args map[string]interface{} `yaml:"args"`
}

// SeedMessage is a message present on the surface before the flow.
type SeedMessage struct {
	// Author is "self" for the engine's identity, "system" for a system
	// notice, or any other id for a foreign author.
	Author string `yaml:"author"`

	// Content is the literal message text.
	Content string `yaml:"content,omitempty"`

	// Planned, when set, copies the content of the planned block at that
	// index (computed from the roster after setup).
	Planned *int `yaml:"planned,omitempty"`
}

// FlowStep represents a step in the main flow.
type FlowStep struct {
	// Invoke is a roster action, "reconcile", "fail" or "recover".
	Invoke string `yaml:"invoke"`

	// Args contains the step arguments.
	Args map[string]interface{} `yaml:"args"`

	// Expect validates the outcome of a reconcile step.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a reconcile step.
type ExpectClause struct {
	// Outcome is "converged", "skipped" or "failed".
	Outcome string `yaml:"outcome"`

	// Error is the expected pass error code when Outcome is "failed".
	Error string `yaml:"error,omitempty"`

	// Writes is the expected number of writes issued by the step.
	Writes *int `yaml:"writes,omitempty"`
}

// Assertion validates the final surface or the write log.
type Assertion struct {
	// Type specifies the assertion type:
	// - "converged": owned standard messages equal the current plan
	// - "write_count": writes of Op (or all writes) equal Count
	// - "write_order": the ops of all writes equal Ops
	// - "system_preserved": seeded system notices remain, in order
	// - "surface_contains": some message has exactly Content
	// - "notified": Count diagnostics reached the log surface
	Type string `yaml:"type"`

	// Op filters write_count to one operation.
	Op string `yaml:"op,omitempty"`

	// Count is the expected number (write_count, notified).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected write sequence (write_order).
	Ops []string `yaml:"ops,omitempty"`

	// Content is the expected message text (surface_contains).
	Content string `yaml:"content,omitempty"`
}

// Flow step and assertion constants.
const (
	InvokeReconcile = "reconcile"
	InvokeFail      = "fail"
	InvokeRecover   = "recover"

	ActionCreateGroup    = "create_group"
	ActionRenameGroup    = "rename_group"
	ActionDeleteGroup    = "delete_group"
	ActionAddMember      = "add_member"
	ActionRemoveMember   = "remove_member"
	ActionMoveMember     = "move_member"
	ActionSetDestination = "set_destination"

	AssertConverged       = "converged"
	AssertWriteCount      = "write_count"
	AssertWriteOrder      = "write_order"
	AssertSystemPreserved = "system_preserved"
	AssertSurfaceContains = "surface_contains"
	AssertNotified        = "notified"
)

var rosterActions = map[string]bool{
	ActionCreateGroup:    true,
	ActionRenameGroup:    true,
	ActionDeleteGroup:    true,
	ActionAddMember:      true,
	ActionRemoveMember:   true,
	ActionMoveMember:     true,
	ActionSetDestination: true,
}

var writeOps = map[string]bool{"create": true, "edit": true, "delete": true}

var outcomes = map[string]bool{"converged": true, "skipped": true, "failed": true}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
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

	if s.GroupOrder != "" && !roster.GroupOrder(s.GroupOrder).Valid() {
		return fmt.Errorf("group_order must be %q or %q", roster.OrderDefinition, roster.OrderPriority)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if !rosterActions[step.Action] {
			return fmt.Errorf("setup[%d]: unknown action %q", i, step.Action)
		}
		if step.Args == nil {
			return fmt.Errorf("setup[%d]: args is required (use empty map if no args)", i)
		}
	}

	for i, m := range s.Surface {
		if m.Author == "" {
			return fmt.Errorf("surface[%d]: author is required", i)
		}
		if m.Planned != nil && m.Content != "" {
			return fmt.Errorf("surface[%d]: content and planned are mutually exclusive", i)
		}
		if m.Planned != nil && *m.Planned < 0 {
			return fmt.Errorf("surface[%d]: planned must be non-negative", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateFlowStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateFlowStep(index int, step *FlowStep) error {
	switch {
	case step.Invoke == "":
		return fmt.Errorf("flow[%d]: invoke is required", index)
	case step.Invoke == InvokeReconcile:
	case step.Invoke == InvokeFail || step.Invoke == InvokeRecover:
		op, _ := step.Args["op"].(string)
		if op != "history" && !writeOps[op] {
			return fmt.Errorf("flow[%d]: op must be history, create, edit or delete", index)
		}
	case rosterActions[step.Invoke]:
	default:
		return fmt.Errorf("flow[%d]: unknown invoke %q", index, step.Invoke)
	}

	if step.Args == nil {
		return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", index)
	}

	if step.Expect != nil {
		if step.Invoke != InvokeReconcile {
			return fmt.Errorf("flow[%d].expect: only reconcile steps take an expect clause", index)
		}
		if !outcomes[step.Expect.Outcome] {
			return fmt.Errorf("flow[%d].expect: outcome must be converged, skipped or failed", index)
		}
		if step.Expect.Error != "" && step.Expect.Outcome != "failed" {
			return fmt.Errorf("flow[%d].expect: error requires outcome failed", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertConverged, AssertSystemPreserved:
	case AssertWriteCount:
		if a.Op != "" && !writeOps[a.Op] {
			return fmt.Errorf("assertions[%d]: unknown op %q for write_count", index, a.Op)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for write_count", index)
		}
	case AssertWriteOrder:
		for _, op := range a.Ops {
			if !writeOps[op] {
				return fmt.Errorf("assertions[%d]: unknown op %q for write_order", index, op)
			}
		}
	case AssertSurfaceContains:
		if a.Content == "" {
			return fmt.Errorf("assertions[%d]: content is required for surface_contains", index)
		}
	case AssertNotified:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for notified", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
