package order

import (
	"errors"
	"fmt"

	"github.com/batikstore/backend/internal/catalog"
)

var ErrOrderNotFound = errors.New("order not found")

// ValidationError identifies the request field or item that failed
// validation. Nothing is written when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError names the product that could not be debited, either
// during pre-validation or when the conditional decrement matched no row at
// commit time. It unwraps to catalog.ErrInsufficientStock.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	if e.Available >= 0 {
		return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.ProductName, e.Available, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for %s", e.ProductName)
}

func (e *InsufficientStockError) Unwrap() error {
	return catalog.ErrInsufficientStock
}
