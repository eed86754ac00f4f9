package harness

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Transcript renders a result as a deterministic, line-oriented text:
// one line per flow step, followed by the writes the step issued.
//
//	scenario: empty_destination
//
//	[1] reconcile -> converged blocks=7 placed=7 created=7 edited=0 kept=0 deleted=0 skipped_system=0
//	    create m1 "..."
func Transcript(name string, result *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n\n", name)

	for _, event := range result.Trace {
		fmt.Fprintf(&buf, "[%d] %s", event.Step, event.Invoke)
		if args := formatArgs(event.Args); args != "" {
			buf.WriteString(" " + args)
		}

		switch event.Outcome {
		case "":
			if event.Error != "" {
				fmt.Fprintf(&buf, " -> error: %s", event.Error)
			}
		case OutcomeSkipped:
			buf.WriteString(" -> skipped")
		default:
			fmt.Fprintf(&buf, " -> %s", event.Outcome)
			if event.ErrorCode != "" {
				buf.WriteString(" " + event.ErrorCode)
			}
			s := event.Stats
			fmt.Fprintf(&buf, " blocks=%d placed=%d created=%d edited=%d kept=%d deleted=%d skipped_system=%d",
				s.Blocks, s.Placed, s.Created, s.Edited, s.Kept, s.Deleted, s.SkippedSystem)
		}
		buf.WriteString("\n")

		for _, w := range event.Writes {
			fmt.Fprintf(&buf, "    %s\n", w)
		}
	}

	fmt.Fprintf(&buf, "\nfinal surface: %d messages\n", len(result.Surface))
	return []byte(buf.String())
}

// formatArgs renders args as space-separated key=value pairs in key order.
func formatArgs(args map[string]interface{}) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, args[k])
	}
	return strings.Join(parts, " ")
}

// RunWithGolden executes a scenario and compares its transcript against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the transcript doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's transcript against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Transcript(scenarioName, result))
}
