package apierror

import "net/http"

// FieldErrors collects validation messages per request field so every
// offending field is reported at once.
type FieldErrors map[string][]string

func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

func (f FieldErrors) Has(field string) bool {
	return len(f[field]) > 0
}

// Merge copies other's messages into f.
func (f FieldErrors) Merge(other FieldErrors) {
	for field, messages := range other {
		f[field] = append(f[field], messages...)
	}
}

// Err returns nil when nothing was collected.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return &Error{
		Kind:   KindValidation,
		Status: http.StatusBadRequest,
		Fields: map[string][]string(f),
	}
}

// Field is shorthand for a validation error on a single field.
func Field(field, message string) *Error {
	return &Error{
		Kind:   KindValidation,
		Status: http.StatusBadRequest,
		Fields: map[string][]string{field: {message}},
	}
}
