package billing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation matches every *ValidationError with errors.Is.
var ErrValidation = errors.New("validation failed")

// FieldError is a single invalid input, keyed by the field the user must fix.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects the invalid fields of an input. It is always
// recoverable locally: nothing has been sent anywhere when it is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add records a failing field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Merge copies the fields of other under the given prefix (e.g. "items[2]").
func (e *ValidationError) Merge(prefix string, other error) {
	var verr *ValidationError
	if !errors.As(other, &verr) {
		e.Add(prefix, other.Error())
		return
	}
	for _, f := range verr.Fields {
		field := f.Field
		if prefix != "" {
			field = prefix + "." + field
		}
		e.Add(field, f.Message)
	}
}

// Messages returns the messages keyed by field, one per field (first wins).
func (e *ValidationError) Messages() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Message
		}
	}
	return out
}

// Err returns nil when no field failed, e otherwise.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// StockError reports a line item asking for more units than are in stock.
// It is a warning unless the caller decides to block on it.
type StockError struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}
