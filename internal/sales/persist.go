package sales

import (
	"context"
	"errors"
	"fmt"
)

// Persister stores sale records. Implementations talk to the shop backend.
type Persister interface {
	CreateSale(ctx context.Context, rec *SaleRecord) (*SaleRecord, error)
	UpdateSale(ctx context.Context, rec *SaleRecord) (*SaleRecord, error)
}

// ErrPersistence matches every *PersistenceError with errors.Is.
var ErrPersistence = errors.New("failed to persist sale")

// PersistenceError is returned when a well-formed record could not be stored.
// The record is untouched and may be submitted again.
type PersistenceError struct {
	Op     string
	SaleID string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.SaleID != "" {
		return fmt.Sprintf("%s sale %s: %v", e.Op, e.SaleID, e.Err)
	}
	return fmt.Sprintf("%s sale: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// persist sends rec as an update when it carries an id, as a create otherwise.
func persist(ctx context.Context, p Persister, rec *SaleRecord) (*SaleRecord, error) {
	op, call := "create", p.CreateSale
	if rec.IsUpdate() {
		op, call = "update", p.UpdateSale
	}

	saved, err := call(ctx, rec)
	if err != nil {
		return nil, &PersistenceError{Op: op, SaleID: rec.ID, Err: err}
	}
	if saved == nil {
		return nil, &PersistenceError{Op: op, SaleID: rec.ID, Err: errors.New("empty response")}
	}
	if rec.IsUpdate() {
		// Identity is fixed once assigned.
		saved.ID = rec.ID
		if saved.InvoiceNumber == "" {
			saved.InvoiceNumber = rec.InvoiceNumber
		}
	}
	return saved, nil
}
