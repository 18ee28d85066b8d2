package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	// ErrOracleParse means the oracle completion held no decodable JSON object.
	ErrOracleParse = errors.New("oracle response parse failure")
	// ErrShape means a query vector does not match the index dimensionality.
	// It points at a model/index mismatch, not at bad input.
	ErrShape = errors.New("vector shape mismatch")
	// ErrIndexUnavailable means the catalog artifacts could not be loaded.
	ErrIndexUnavailable = errors.New("catalog index unavailable")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
