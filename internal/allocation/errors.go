package allocation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInternalConsistency means apportionment ran out of source records
	// before covering an assignment that had already passed validation. That
	// points at a stale stock snapshot or a bug, not at the operator.
	ErrInternalConsistency = errors.New("allocation internal consistency error")
)

// ValidationErrors collects every per-item mismatch found in one validation
// pass so the operator sees the full list of corrections at once.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return strings.Join(v, "; ")
}

// CellError ties an internal-consistency failure to the cell it happened in.
type CellError struct {
	ItemName    string
	WarehouseID int
	Unassigned  int
}

func (e *CellError) Error() string {
	return fmt.Sprintf("%d units of %s unapportioned in warehouse %d: %v",
		e.Unassigned, e.ItemName, e.WarehouseID, ErrInternalConsistency)
}

func (e *CellError) Unwrap() error { return ErrInternalConsistency }
