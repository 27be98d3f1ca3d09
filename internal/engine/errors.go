package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/climq/internal/ir"
)

// Error explains why a question was not answered.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// QuestionID identifies the affected question.
	QuestionID string

	// Missing lists the required kinds that did not resolve.
	Missing []ir.Kind

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes unanswered questions.
type ErrorCode string

const (
	// ErrCodeExtractionMiss indicates nothing usable was found in the
	// question.
	ErrCodeExtractionMiss ErrorCode = "EXTRACTION_MISS"

	// ErrCodeMissingFilters indicates required kinds did not resolve.
	ErrCodeMissingFilters ErrorCode = "MISSING_FILTERS"

	// ErrCodeQueryRejected indicates a compiled statement failed the
	// read-only guard. Nothing was executed.
	ErrCodeQueryRejected ErrorCode = "QUERY_REJECTED"

	// ErrCodeUnknownDomain indicates the engine was configured with a
	// domain the registry does not hold.
	ErrCodeUnknownDomain ErrorCode = "UNKNOWN_DOMAIN"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.QuestionID != "" {
		return fmt.Sprintf("%s: %s (question=%s)", e.Code, e.Message, e.QuestionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsMissingFilters reports whether err is a missing filters error.
// Uses errors.As to handle wrapped errors.
func IsMissingFilters(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeMissingFilters
}

// IsExtractionMiss reports whether err is an extraction miss.
func IsExtractionMiss(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeExtractionMiss
}

// IsRejected reports whether err is a rejected query error.
func IsRejected(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeQueryRejected
}

func newExtractionMiss(questionID string) *Error {
	return &Error{
		Code:       ErrCodeExtractionMiss,
		Message:    "no metric, location, category or date could be identified",
		QuestionID: questionID,
	}
}

func newMissingFilters(questionID string, missing []ir.Kind) *Error {
	names := make([]string, len(missing))
	for i, k := range missing {
		names[i] = strings.ToLower(string(k))
	}
	return &Error{
		Code:       ErrCodeMissingFilters,
		Message:    "missing required filters: " + strings.Join(names, ", "),
		QuestionID: questionID,
		Missing:    missing,
	}
}

func newRejected(questionID string, err error) *Error {
	return &Error{
		Code:       ErrCodeQueryRejected,
		Message:    err.Error(),
		QuestionID: questionID,
		Err:        err,
	}
}
