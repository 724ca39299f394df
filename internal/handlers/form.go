package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"farm-advisor/internal/models"
)

// formFloat reads a required numeric form field. Missing, non-numeric,
// NaN and infinite values are rejected.
func formFloat(r *http.Request, field string) (float64, error) {
	raw := strings.TrimSpace(r.PostFormValue(field))
	if raw == "" {
		return 0, &models.ValidationError{Field: field, Message: field + " is required"}
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &models.ValidationError{Field: field, Value: raw, Message: field + " must be a finite number"}
	}

	return v, nil
}

// floatField binds a form field name to its destination
type floatField struct {
	name string
	dst  *float64
}

// formFloats reads several numeric fields in order, stopping at the first bad one
func formFloats(r *http.Request, fields ...floatField) error {
	for _, f := range fields {
		v, err := formFloat(r, f.name)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

// formString reads a required text form field
func formString(r *http.Request, field string) (string, error) {
	v := strings.TrimSpace(r.PostFormValue(field))
	if v == "" {
		return "", &models.ValidationError{Field: field, Message: field + " is required"}
	}
	return v, nil
}

// pathID reads a positive integer path variable
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, &models.ValidationError{Field: name, Value: raw, Message: "invalid " + name}
	}
	return id, nil
}

// queryInt reads an optional integer query parameter, returning def when
// it is absent. A malformed value is a *models.ValidationError.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.ValidationError{Field: name, Value: raw, Message: name + " must be an integer"}
	}
	return v, nil
}
