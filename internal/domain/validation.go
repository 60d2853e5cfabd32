package domain

import "fmt"

// invalid tags a validator failure with ErrInvalidInput while keeping the
// validator's message readable.
func invalid(err error) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
}
