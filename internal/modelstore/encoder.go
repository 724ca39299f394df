package modelstore

import (
	"encoding/json"
	"fmt"
	"os"

	"farm-advisor/internal/models"
)

// EncoderTable is a trained label encoder: a fixed bijection between
// string labels and the integer codes 0..n-1. Code i is the i-th label in
// ascending order, as produced at training time.
type EncoderTable struct {
	name    string
	classes []string
	index   map[string]int
}

// encoderFile is the on-disk artifact format
type encoderFile struct {
	Name    string   `json:"name"`
	Classes []string `json:"classes"`
}

// NewEncoderTable builds an encoder from its class list. The list must be
// non-empty, strictly ascending and free of duplicates.
func NewEncoderTable(name string, classes []string) (*EncoderTable, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("encoder %s: no classes", name)
	}

	index := make(map[string]int, len(classes))
	for i, label := range classes {
		if i > 0 && classes[i-1] >= label {
			return nil, fmt.Errorf("encoder %s: classes not strictly ascending at %q", name, label)
		}
		index[label] = i
	}

	return &EncoderTable{
		name:    name,
		classes: append([]string(nil), classes...),
		index:   index,
	}, nil
}

// LoadEncoderTable reads an encoder artifact from disk
func LoadEncoderTable(path string) (*EncoderTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoder file: %w", err)
	}

	var f encoderFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal encoder %s: %w", path, err)
	}

	return NewEncoderTable(f.Name, f.Classes)
}

// Name returns the vocabulary name ("soil", "crop", "fertilizer")
func (e *EncoderTable) Name() string {
	return e.name
}

// Len returns the vocabulary size
func (e *EncoderTable) Len() int {
	return len(e.classes)
}

// Transform encodes a label. Labels outside the vocabulary fail with
// *models.UnknownLabelError; there is no fallback code.
func (e *EncoderTable) Transform(label string) (int, error) {
	code, ok := e.index[label]
	if !ok {
		return 0, &models.UnknownLabelError{Vocabulary: e.name, Label: label}
	}
	return code, nil
}

// InverseTransform decodes a class code back to its label
func (e *EncoderTable) InverseTransform(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", &models.UnknownLabelError{Vocabulary: e.name, Code: code, IsCode: true}
	}
	return e.classes[code], nil
}

// Classes returns a copy of the vocabulary in code order
func (e *EncoderTable) Classes() []string {
	return append([]string(nil), e.classes...)
}
