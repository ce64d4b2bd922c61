package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fablekeep/internal/config"
	"github.com/roach88/fablekeep/internal/harness"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	GoldenDir string // compare traces against <dir>/<name>.golden when set
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// PlayResult holds the overall playback result.
type PlayResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <scenario.yaml|dir>...",
		Short: "Replay scripted play scenarios",
		Long: `Replay YAML scenarios against a fresh in-memory fablekeep and check their
expectations and assertions. Nothing touches the configured database or
backup remote.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  fablekeep play ./scenarios
  fablekeep play ./scenarios --filter "backup_*"
  fablekeep play ./scenarios --golden ./golden --update`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files (requires --golden)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runPlay(opts *PlayOptions, paths []string, cmd *cobra.Command) error {
	if opts.Update && opts.GoldenDir == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	files, err := harness.ResolveScenarios(paths)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return WrapExitError(ExitCommandError, "scenario not found", err)
		}
		return fmt.Errorf("failed to find scenarios: %w", err)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	// Scenarios log repairs and autosaves at info; keep play output quiet
	// unless asked.
	cfg := config.Default()
	cfg.LogLevel = "warn"
	logger := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)

	result := PlayResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	w := cmd.OutOrStdout()
	for _, file := range files {
		res := playScenario(file, opts, harness.WithLogger(logger))
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if opts.Format != "json" {
			if res.Pass {
				fmt.Fprintf(w, "✓ %s\n", res.Name)
			} else {
				fmt.Fprintf(w, "✗ %s\n", res.Name)
				for _, e := range res.Errors {
					fmt.Fprintf(w, "  %s\n", e)
				}
			}
		}
	}

	if opts.Format == "json" {
		return outputPlayJSON(cmd, result)
	}
	return outputPlayText(cmd, result)
}

func filterScenarios(files []string, filter string) ([]string, error) {
	if filter == "" {
		return files, nil
	}
	var out []string
	for _, f := range files {
		base := filepath.Base(f)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(filter, name)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, f)
		}
	}
	return out, nil
}

// playScenario loads and runs one scenario file, then compares its trace
// with the golden file when a golden directory is configured.
func playScenario(file string, opts *PlayOptions, runOpts ...harness.Option) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}
	errs := result.Errors

	if opts.GoldenDir != "" {
		if msg := checkGolden(scenario.Name, result, opts); msg != "" {
			errs = append(errs, msg)
		}
	}
	return ScenarioResult{Name: scenario.Name, Pass: len(errs) == 0, Errors: errs}
}

// checkGolden compares or rewrites the golden trace of a scenario. It
// returns an empty string when the trace matches.
func checkGolden(name string, result *harness.Result, opts *PlayOptions) string {
	current, err := harness.MarshalTrace(name, result)
	if err != nil {
		return fmt.Sprintf("failed to marshal trace: %v", err)
	}
	path := filepath.Join(opts.GoldenDir, name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.GoldenDir, 0o755); err != nil {
			return fmt.Sprintf("failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(path, current, 0o644); err != nil {
			return fmt.Sprintf("failed to write golden file: %v", err)
		}
		return ""
	}

	golden, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("failed to read golden file: %v", err)
	}
	if !bytes.Equal(golden, current) {
		return "trace does not match golden file (run with --update to regenerate)"
	}
	return ""
}

// outputPlayJSON outputs the playback result as JSON.
func outputPlayJSON(cmd *cobra.Command, result PlayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputPlayText outputs the playback summary as text.
func outputPlayText(cmd *cobra.Command, result PlayResult) error {
	w := cmd.OutOrStdout()

	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Play Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
