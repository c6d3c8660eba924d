package reg

import (
	"errors"
	"fmt"
)

var (
	// ErrBlockOwned indicates the register block already has an owner.
	ErrBlockOwned = errors.New("register block already owned")
	// ErrReleased is returned by a driver used after it freed its block.
	ErrReleased = errors.New("register block released")
	// ErrInvalidField matches every InvalidFieldError with errors.Is.
	ErrInvalidField = errors.New("invalid field")
)

// InvalidFieldError reports an access rejected before it reached the bus:
// a reserved bit, a field not declared on the register, a value wider than
// its field or a permission violation.
type InvalidFieldError struct {
	Register string
	Field    string
	Reason   string
}

// Error implements error.
func (e *InvalidFieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("register %s: %s", e.Register, e.Reason)
	}
	return fmt.Sprintf("register %s field %s: %s", e.Register, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidField) hold.
func (e *InvalidFieldError) Is(target error) bool {
	return target == ErrInvalidField
}

// LayoutError reports an invalid register or block declaration.
type LayoutError struct {
	Name   string
	Reason string
}

// Error implements error.
func (e *LayoutError) Error() string {
	return fmt.Sprintf("layout %s: %s", e.Name, e.Reason)
}
