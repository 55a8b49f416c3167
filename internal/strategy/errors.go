package strategy

import (
	"fmt"

	"github.com/pkg/errors"
)

// InsufficientDataError is returned when the evaluator cannot score the
// latest bars: fewer than two rows, or a required indicator still warming up.
type InsufficientDataError struct {
	Rows  int    // rows supplied
	Row   string // "prev" or "last" when a field is undefined
	Field string // indicator name that is NaN
}

func (e *InsufficientDataError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("insufficient data: need at least 2 indicator rows, got %d", e.Rows)
	}
	return fmt.Sprintf("insufficient data: %s row has undefined %s", e.Row, e.Field)
}

// IsInsufficientData reports whether err is (or wraps) an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}
