package market

import (
	"errors"
	"fmt"
)

// Entity names carried by NotFoundError.
const (
	EntityUser     = "user"
	EntityItem     = "item"
	EntityUniverse = "universe"
)

// Sentinel errors for client-fault conditions. Callers match them with
// errors.Is; the engine wraps them with the entity and constraint that
// failed.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// NotFoundError reports a missing entity by kind and id.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// IsNotFound reports whether err is a NotFoundError for any entity.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
