package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes shared across services and handlers.
const (
	CodeNotFound           = "not_found"
	CodeDependencyNotMet   = "dependency_not_met"
	CodeGateNotSatisfied   = "gate_not_satisfied"
	CodeGenerationFailed   = "generation_failed"
	CodeMalformedPlan      = "malformed_plan"
	CodeAllocationConflict = "allocation_conflict"
	CodeInvalidPhase       = "invalid_phase"
	CodeInvalidInput       = "invalid_input"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(what string) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf("%s not found", what))
}

// DependencyNotMet names the missing predecessor so callers can act on it.
func DependencyNotMet(missing string) *Error {
	return New(http.StatusConflict, CodeDependencyNotMet, fmt.Errorf("dependency not met: %s", missing))
}

// GateNotSatisfied names every missing required field.
func GateNotSatisfied(missingFields []string) *Error {
	return New(http.StatusUnprocessableEntity, CodeGateNotSatisfied,
		fmt.Errorf("gate not satisfied: missing %s", strings.Join(missingFields, ", ")))
}

func GenerationFailed(err error) *Error {
	return New(http.StatusBadGateway, CodeGenerationFailed, fmt.Errorf("generation failed: %w", err))
}

func MalformedPlan(err error) *Error {
	return New(http.StatusUnprocessableEntity, CodeMalformedPlan, fmt.Errorf("malformed plan: %w", err))
}

func AllocationConflict(prefix string) *Error {
	return New(http.StatusConflict, CodeAllocationConflict, fmt.Errorf("identifier allocation conflict for prefix %s", prefix))
}

func InvalidPhase(from, to string) *Error {
	return New(http.StatusConflict, CodeInvalidPhase, fmt.Errorf("cannot transition from %s to %s", from, to))
}

func InvalidInput(msg string) *Error {
	return New(http.StatusBadRequest, CodeInvalidInput, errors.New(msg))
}

// CodeOf extracts the taxonomy code from any error in the chain, or "".
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// StatusOf maps an error to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}
