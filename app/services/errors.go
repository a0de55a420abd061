package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"postvote/app/models"
	"postvote/app/repositories"
)

var (
	// ErrUnauthorized indicates a missing or unknown identity.
	ErrUnauthorized = errors.New("authentication credentials were not provided")

	// ErrForbidden indicates an authenticated identity that may not perform
	// the action. Every *ForbiddenError matches it.
	ErrForbidden = errors.New("permission denied")

	// ErrDuplicateVote indicates the voter already cast the same choice.
	// It is Forbidden-class.
	ErrDuplicateVote = errors.New("duplicate vote")

	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable indicates the store timed out or is down.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError collects every failing field of one request.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Add records a problem with field.
func (e *ValidationError) Add(field, problem string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], problem)
}

// Merge copies every problem from fields.
func (e *ValidationError) Merge(fields map[string][]string) {
	for field, problems := range fields {
		for _, p := range problems {
			e.Add(field, p)
		}
	}
}

// Err returns e when it holds at least one problem, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// fieldErrors turns a model validation failure into a *ValidationError.
func fieldErrors(err error) error {
	problems := models.FieldProblems(err)
	if problems == nil {
		return err
	}
	return &ValidationError{Fields: problems}
}

func invalid(field, problem string) error {
	e := &ValidationError{}
	e.Add(field, problem)
	return e
}

// ForbiddenError carries the message shown to the caller.
type ForbiddenError struct {
	Reason string
	kind   error
}

func (e *ForbiddenError) Error() string { return e.Reason }

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden || (e.kind != nil && target == e.kind)
}

func forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}

func duplicateVote(choice models.Choice) error {
	return &ForbiddenError{
		Reason: fmt.Sprintf("you cannot %s this post twice", choice),
		kind:   ErrDuplicateVote,
	}
}

// fromStore converts repository errors into service errors and leaves
// everything else alone.
func fromStore(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repositories.ErrUnavailable), errors.Is(err, repositories.ErrConflict):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
