/*
errors.go - Centralized error types for the report pipeline

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure of GenerateReport is returned as a *GenerationError that
  carries the pipeline stage, so callers can tell a fault raised before the
  store write from one raised during or after it.

ERROR CATEGORIES:
  1. Data errors       - MissingFieldError, TypeMismatchError, DataConsistencyError
  2. Rendering errors  - TemplateError, ConversionError
  3. Engine errors     - RendererUnavailableError (non-fatal, disables PDF output)
  4. Store errors      - ErrInvestorNotFound, wrapped driver errors

USAGE:
  _, err := gen.GenerateReport(ctx, data, true)
  var missing *report.MissingFieldError
  if errors.As(err, &missing) {
      // missing.Fields lists every absent field
  }

SEE ALSO:
  - validate.go: Raises the data errors
  - generator.go: Wraps everything into GenerationError
*/
package report

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidData is the parent of every validation failure.
	ErrInvalidData = errors.New("invalid investor data")

	// ErrTemplate is returned when the HTML template cannot be executed.
	ErrTemplate = errors.New("template error")

	// ErrConversion is returned when an enabled PDF engine fails.
	ErrConversion = errors.New("pdf conversion failed")

	// ErrRendererUnavailable is returned when the PDF engine cannot be used.
	// It is never fatal for a generation.
	ErrRendererUnavailable = errors.New("pdf renderer unavailable")

	// ErrInvestorNotFound is returned when the investor row does not exist.
	ErrInvestorNotFound = errors.New("investor not found")

	// ErrInvestorIDRequired is returned when a report must be saved but the
	// data carries no investor id.
	ErrInvestorIDRequired = errors.New("investor id required to save report")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingFieldError lists every required field absent from the input.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing required fields: %s", strings.Join(e.Fields, ", "))
}

func (e *MissingFieldError) Unwrap() error {
	return ErrInvalidData
}

// TypeMismatchError reports a field whose value could not be coerced.
type TypeMismatchError struct {
	Field string
	Want  string // "number" or "string"
	Type  string // runtime type of the offending value
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("Field '%s' must be a %s, got %s", e.Field, e.Want, e.Type)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrInvalidData
}

// DataConsistencyError reports totals that do not reconcile.
type DataConsistencyError struct {
	Rule     string
	Expected float64
	Actual   float64
}

func (e *DataConsistencyError) Error() string {
	return fmt.Sprintf("Inconsistent data: %s (expected %.2f, got %.2f)", e.Rule, e.Expected, e.Actual)
}

func (e *DataConsistencyError) Unwrap() error {
	return ErrInvalidData
}

// TemplateError wraps a parse or execution fault of the report template.
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() []error {
	return []error{ErrTemplate, e.Err}
}

// ConversionError wraps a failure of an enabled PDF engine.
type ConversionError struct {
	Engine  string
	Timeout bool
	Output  string // trimmed diagnostic output of the engine, if any
	Err     error
}

func (e *ConversionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: pdf conversion timed out: %v", e.Engine, e.Err)
	}
	if e.Output != "" {
		return fmt.Sprintf("%s: pdf conversion failed: %v: %s", e.Engine, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: pdf conversion failed: %v", e.Engine, e.Err)
}

func (e *ConversionError) Unwrap() []error {
	return []error{ErrConversion, e.Err}
}

// RendererUnavailableError explains why PDF output is disabled.
type RendererUnavailableError struct {
	Engine string
	Reason string
}

func (e *RendererUnavailableError) Error() string {
	return fmt.Sprintf("%s is not installed or not usable: %s", e.Engine, e.Reason)
}

func (e *RendererUnavailableError) Unwrap() error {
	return ErrRendererUnavailable
}

// =============================================================================
// GENERATION ERROR - Stage-tagged failure of the whole pipeline
// =============================================================================

// Stage names the pipeline step that failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageSequence Stage = "sequence"
	StageRender   Stage = "render"
	StageConvert  Stage = "convert"
	StageWrite    Stage = "write"
	StageCommit   Stage = "commit"
)

// GenerationError is the single error type returned by GenerateReport.
type GenerationError struct {
	Stage      Stage
	InvestorID string
	Err        error
}

func (e *GenerationError) Error() string {
	return e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// BeforeWrite reports whether the failure happened before the store write
// was attempted. Such failures never touch the store.
func (e *GenerationError) BeforeWrite() bool {
	return e.Stage != StageWrite && e.Stage != StageCommit
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidationError returns true if the error is due to bad investor data.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidData)
}

// IsNotFound returns true if the error indicates a missing investor.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvestorNotFound)
}
