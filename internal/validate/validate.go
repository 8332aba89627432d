// Package validate checks raw diagnosis form input. It is pure: no
// side effects, no external calls, and it either yields a typed
// in-range request or a non-empty list of violations, never both.
package validate

import (
	"strconv"
	"strings"

	"github.com/medsage/medsage-server/internal/types"
)

const (
	MinAge    = 0
	MaxAge    = 150
	MinWeight = 0
	MaxWeight = 1000
	MinHeight = 0
	MaxHeight = 300

	MaxSymptoms = 20
)

var requiredFields = []string{"age", "weight", "height", "symptoms"}

// MissingFields reports required fields absent (or blank) in the form,
// by bare name, in a fixed order.
func MissingFields(form map[string]string) []string {
	var missing []string
	for _, field := range requiredFields {
		if strings.TrimSpace(form[field]) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// Validate checks presence, shape, and range of the diagnosis form
// fields. Missing fields are reported by name; out-of-range or
// unparseable values get a descriptive message. Bounds are inclusive.
func Validate(form map[string]string) (*types.DiagnosisRequest, []string) {
	if missing := MissingFields(form); len(missing) > 0 {
		return nil, missing
	}

	var violations []string
	req := &types.DiagnosisRequest{}

	age, err := strconv.Atoi(strings.TrimSpace(form["age"]))
	switch {
	case err != nil:
		violations = append(violations, "Age must be a valid number")
	case age < MinAge || age > MaxAge:
		violations = append(violations, "Age must be between 0 and 150")
	default:
		req.Age = age
	}

	weight, err := strconv.ParseFloat(strings.TrimSpace(form["weight"]), 64)
	switch {
	case err != nil:
		violations = append(violations, "Weight must be a valid number")
	case weight < MinWeight || weight > MaxWeight:
		violations = append(violations, "Weight must be between 0 and 1000 kg")
	default:
		req.Weight = weight
	}

	height, err := strconv.ParseFloat(strings.TrimSpace(form["height"]), 64)
	switch {
	case err != nil:
		violations = append(violations, "Height must be a valid number")
	case height < MinHeight || height > MaxHeight:
		violations = append(violations, "Height must be between 0 and 300 cm")
	default:
		req.Height = height
	}

	symptoms := SplitSymptoms(form["symptoms"])
	switch {
	case len(symptoms) == 0:
		violations = append(violations, "At least one symptom is required")
	case len(symptoms) > MaxSymptoms:
		violations = append(violations, "Maximum 20 symptoms allowed")
	default:
		req.Symptoms = symptoms
	}

	if len(violations) > 0 {
		return nil, violations
	}
	return req, nil
}

// SplitSymptoms turns a comma-separated string into trimmed, non-empty
// entries, preserving order.
func SplitSymptoms(raw string) []string {
	var symptoms []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			symptoms = append(symptoms, s)
		}
	}
	return symptoms
}

// ValidFilename reports whether the filename carries an extension from
// the allow-set. The check is case-insensitive. Callers treat an absent
// file as valid before reaching this check.
func ValidFilename(filename string, allowed map[string]bool) bool {
	if filename == "" {
		return false
	}
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return false
	}
	return allowed[strings.ToLower(filename[idx+1:])]
}
