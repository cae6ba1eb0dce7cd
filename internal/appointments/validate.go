package appointments

import (
	"regexp"
	"strings"
	"unicode"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// ValidatePhone strips whitespace, hyphens and parentheses from raw and
// accepts an optional leading plus followed by 10 to 15 digits.
func ValidatePhone(raw string) bool {
	return phonePattern.MatchString(stripPhone(raw))
}

func stripPhone(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, raw)
}

// ValidateRequired reports whether every field is non-blank and a procedure
// other than the placeholder was chosen.
func ValidateRequired(name, procedure, phone, clinic string) bool {
	return firstMissingField(name, procedure, phone, clinic) == ""
}

func firstMissingField(name, procedure, phone, clinic string) string {
	switch {
	case strings.TrimSpace(name) == "":
		return "patient_name"
	case strings.TrimSpace(procedure) == "", Procedure(strings.TrimSpace(procedure)) == ProcedureUnselected:
		return "procedure"
	case strings.TrimSpace(phone) == "":
		return "phone_number"
	case strings.TrimSpace(clinic) == "":
		return "clinic"
	}
	return ""
}

// ParseProcedure resolves a full label or a bare modality code ("CT", "dx")
// to a bookable Procedure. Matching ignores case and surrounding whitespace.
func ParseProcedure(raw string) (Procedure, error) {
	raw = strings.TrimSpace(raw)
	for _, p := range procedures {
		if strings.EqualFold(raw, string(p)) || strings.EqualFold(raw, p.Code()) {
			return p, nil
		}
	}
	return "", ErrUnknownProcedure
}

// validateAddRequest runs the checks in order and stops at the first failure.
func validateAddRequest(req AddRequest) (Procedure, error) {
	if field := firstMissingField(req.PatientName, req.Procedure, req.PhoneNumber, req.Clinic); field != "" {
		return "", &ValidationError{Field: field, Err: ErrMissingFields}
	}
	procedure, err := ParseProcedure(req.Procedure)
	if err != nil {
		return "", &ValidationError{Field: "procedure", Err: err}
	}
	if !ValidatePhone(req.PhoneNumber) {
		return "", &ValidationError{Field: "phone_number", Err: ErrInvalidPhone}
	}
	return procedure, nil
}
