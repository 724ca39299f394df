package models

import (
	"errors"
	"fmt"
	"strconv"
)

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// ErrUnknownLabel is matched by every *UnknownLabelError via errors.Is
var ErrUnknownLabel = errors.New("label not found in trained vocabulary")

// UnknownLabelError reports a categorical label (or a predicted class code)
// that is absent from an encoder's trained vocabulary.
type UnknownLabelError struct {
	Vocabulary string // "soil", "crop", "fertilizer"
	Label      string
	Code       int
	IsCode     bool
}

func (e *UnknownLabelError) Error() string {
	if e.IsCode {
		return fmt.Sprintf("%s class %d not found in trained vocabulary", e.Vocabulary, e.Code)
	}
	return fmt.Sprintf("%s label %q not found in trained vocabulary", e.Vocabulary, e.Label)
}

// Is lets errors.Is(err, ErrUnknownLabel) match
func (e *UnknownLabelError) Is(target error) bool {
	return target == ErrUnknownLabel
}

// IsTransient returns false; retrying with the same label cannot succeed
func (e *UnknownLabelError) IsTransient() bool {
	return false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
