package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/multitester/internal/config"
	"github.com/roach88/multitester/internal/filedoc"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Generic failure
	ExitCommandError = 2 // Configuration or command error (missing plan, bad directory, etc.)
)

// Error codes reported in CLI output.
const (
	ErrCodeGeneric                = "E001" // Generic/unknown error
	ErrCodeConfigNotFound         = "E201" // Test-plan file missing
	ErrCodeDirectoryMisconfigured = "E202" // No composer.json in project directory
	ErrCodeMissingPackageName     = "E203" // composer.json without name
	ErrCodePlanUnreadable         = "E204" // Test plan or metadata could not be parsed
	ErrCodeHistory                = "E301" // Plan journal could not be opened or read
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// report writes message through f and returns the matching ExitError.
// Commands return ExitErrors only after reporting them.
func report(f *OutputFormatter, code string, exitCode int, message string, err error) error {
	if outErr := f.Error(code, message, nil); outErr != nil {
		return outErr
	}
	return &ExitError{Code: exitCode, Message: message, Err: err}
}

// ErrorCode maps an assembly error to its CLI error code.
func ErrorCode(err error) string {
	var parseErr *filedoc.ParseError
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		return ErrCodeConfigNotFound
	case errors.Is(err, config.ErrDirectoryMisconfigured):
		return ErrCodeDirectoryMisconfigured
	case errors.Is(err, config.ErrMissingPackageName):
		return ErrCodeMissingPackageName
	case errors.Is(err, config.ErrPlanUnreadable), errors.As(err, &parseErr):
		return ErrCodePlanUnreadable
	default:
		return ErrCodeGeneric
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E201", "E202", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// textRenderer is implemented by payloads with their own text layout.
type textRenderer interface {
	RenderText(w io.Writer)
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	return f.SuccessWithRun("", data)
}

// SuccessWithRun is Success with the run id attached to JSON output.
func (f *OutputFormatter) SuccessWithRun(runID string, data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "ok",
			Data:   data,
			RunID:  runID,
		})
	}

	if r, ok := data.(textRenderer); ok {
		r.RenderText(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}
