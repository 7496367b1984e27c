package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFormat      = errors.New("invalid format: expected <code> <quantity>")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidCode        = errors.New("invalid product code")
	ErrNoMatchFound       = errors.New("no match found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrUnsupportedFeature = errors.New("feature not available")

	ErrInvalidProduct  = errors.New("invalid product")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderFinalized  = errors.New("order already finalized")

	ErrStorage = errors.New("storage failure")
)

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
