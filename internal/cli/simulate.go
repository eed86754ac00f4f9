package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/harness"
	"github.com/roach88/rollcall/internal/logging"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	Show   bool   // print each transcript
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name       string   `json:"name"`
	Pass       bool     `json:"pass"`
	Errors     []string `json:"errors,omitempty"`
	Transcript string   `json:"transcript,omitempty"`
}

// SimulateResult holds the overall simulation result.
type SimulateResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml|scenarios-dir>",
		Short: "Run display scenarios against an in-memory channel",
		Long: `Run reconciliation scenarios against an in-memory display surface.

Each scenario seeds a roster and a channel, runs passes, and checks the
expectations and assertions it declares. When a golden transcript exists
next to the scenario (golden/<name>.golden) the run must match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  rollcall simulate testdata/scenarios
  rollcall simulate testdata/scenarios/trailing_surplus.yaml --show
  rollcall simulate testdata/scenarios --filter "noise*"
  rollcall simulate testdata/scenarios --update`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVar(&opts.Show, "show", false, "print each scenario transcript")

	return cmd
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", path))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to stat scenario path", err)
	}

	var scenarioFiles []string
	if info.IsDir() {
		scenarioFiles, err = findScenarioFiles(path, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
	} else {
		scenarioFiles = []string{path}
	}

	result := SimulateResult{
		Scenarios: make([]ScenarioResult, 0),
		Total:     len(scenarioFiles),
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputSimulateJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	for _, file := range scenarioFiles {
		r := runScenarioFile(opts, file, cmd)
		result.Scenarios = append(result.Scenarios, r)
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputSimulateJSON(cmd, result)
	}
	return outputSimulateText(cmd, result)
}

// findScenarioFiles finds all YAML scenario files in a directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		// Only process .yaml and .yml files
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenarioFile executes one scenario file. A load failure yields a failed
// result named after the file.
func runScenarioFile(opts *SimulateOptions, file string, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()
	text := opts.Format != "json"

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		if text {
			fmt.Fprintf(w, "✗ %s\n", filepath.Base(file))
			fmt.Fprintf(w, "  Load error: %v\n", err)
		}
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	logger := logging.New(logging.Options{Profile: logging.ProfileTest, Writer: cmd.ErrOrStderr()})
	if !opts.Verbose {
		logger = logging.Discard()
	}

	result, err := harness.RunWithLogger(scenario, logger)
	if err != nil {
		if text {
			fmt.Fprintf(w, "✗ %s\n", scenario.Name)
			fmt.Fprintf(w, "  Execution error: %v\n", err)
		}
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	transcript := harness.Transcript(scenario.Name, result)
	sr := ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
	if opts.Show {
		sr.Transcript = string(transcript)
	}

	goldenPath := goldenFilePath(file)
	switch {
	case opts.Update:
		if err := writeGolden(goldenPath, transcript); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
		}
	default:
		want, err := os.ReadFile(goldenPath)
		switch {
		case os.IsNotExist(err):
			// No golden file: assertions alone decide.
		case err != nil:
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		case !bytes.Equal(want, transcript):
			sr.Pass = false
			sr.Errors = append(sr.Errors, "transcript does not match golden file (run with --update to regenerate)")
		}
	}

	if text {
		mark := "✓"
		if !sr.Pass {
			mark = "✗"
		}
		suffix := ""
		if opts.Update {
			suffix = " (golden updated)"
		}
		fmt.Fprintf(w, "%s %s%s\n", mark, sr.Name, suffix)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		if opts.Show {
			fmt.Fprintln(w)
			fmt.Fprint(w, sr.Transcript)
		}
	}

	return sr
}

// goldenFilePath returns the path to the golden transcript for a scenario file.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// outputSimulateJSON outputs the simulation result as JSON.
func outputSimulateJSON(cmd *cobra.Command, result SimulateResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}

	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    CodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	out := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	if err := out.encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputSimulateText outputs the simulation summary as text.
func outputSimulateText(cmd *cobra.Command, result SimulateResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Simulation Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
