package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fablekeep/internal/scene"
)

// ValidationIssue is one scene file that failed schema validation.
type ValidationIssue struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

func newScenesValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Check scene files against the scene schema",
		Long: `Validate every *.json scene file of a directory against the scene schema.

Loading skips broken scenes with a logged error; validate reports all of
them at once with their positions.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				dir = cfg.ScenesDir
			}
			return runValidate(opts, dir, cmd)
		},
	}
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	files, err := sceneFiles(dir)
	if err != nil {
		_ = formatter.Error("E_SCENES_DIR", err.Error(), nil)
		// Unreadable directories are command-level errors (exit code 2)
		return WrapExitError(ExitCommandError, "failed to list scenes", err)
	}
	formatter.VerboseLog("Found %d scene file(s) in %s", len(files), dir)

	validator, err := scene.NewValidator()
	if err != nil {
		return fmt.Errorf("failed to compile scene schema: %w", err)
	}

	var issues []ValidationIssue
	for _, name := range files {
		formatter.VerboseLog("Validating scene: %s", name)
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			issues = append(issues, ValidationIssue{File: name, Message: err.Error()})
			continue
		}
		if err := validator.Validate(name, data); err != nil {
			issues = append(issues, toIssue(name, err))
		}
	}

	if len(issues) > 0 {
		return outputValidationErrors(formatter, len(files), issues)
	}
	return outputValidateSuccess(formatter, len(files))
}

// sceneFiles lists the scene documents of dir, skipping the manifest.
func sceneFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == scene.ManifestFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		files = append(files, name)
	}
	scene.SortIDs(files)
	return files, nil
}

func toIssue(file string, err error) ValidationIssue {
	var ve *scene.ValidationError
	if !errors.As(err, &ve) {
		return ValidationIssue{File: file, Message: err.Error()}
	}
	issue := ValidationIssue{File: ve.File, Message: ve.Message}
	if ve.Pos.IsValid() {
		issue.Line = ve.Pos.Line()
		issue.Column = ve.Pos.Column()
	}
	return issue
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, files int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Files: files})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d scene(s) valid\n", files)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, files int, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Files: files, Errors: issues},
			Error: &CLIError{
				Code:    "E_SCENE_INVALID",
				Message: issues[0].Message,
			},
		})
		if err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", issue.File, issue.Line, issue.Column)
		} else {
			fmt.Fprintln(formatter.Writer, issue.File)
		}
		fmt.Fprintf(formatter.Writer, "  %s\n\n", issue.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
