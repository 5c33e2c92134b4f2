package allocation

import (
	"fmt"
	"sort"

	"github.com/caridad-cloud/allocation-service/internal/domain"
	"github.com/caridad-cloud/allocation-service/internal/manifest"
	"go.uber.org/zap"
)

// Reconciler validates operator assignments against demand and apportions them
// across donation records into per-warehouse package commands.
type Reconciler struct {
	logger *zap.Logger
}

func NewReconciler(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Validate checks every demand line against the matrix assignments and
// returns the complete list of violations, never just the first. It is a pure
// pass: no commands are built and nothing is mutated.
//
// Three rules apply: per item the assignments must sum to the requested
// quantity exactly; no single cell may assign more than its available stock
// or a negative amount; and a repeated demand line with a nonzero quantity is
// unsatisfiable (the matrix stages one row per item, so only the first line's
// quantity can be assigned) and must be called out rather than silently lost.
// The range rule re-checks what the editing surface already clamps; clamped
// input is not trusted here.
func (r *Reconciler) Validate(matrix *domain.AllocationMatrix) ValidationErrors {
	var errs ValidationErrors

	seen := make(map[string]bool, len(matrix.Demand))
	for _, item := range matrix.Demand {
		if seen[item.Name] {
			if item.RequestedQuantity > 0 {
				errs = append(errs, fmt.Sprintf(
					"Cannot fulfill duplicate demand line for %s (%d units); merge it into the first line",
					item.Name, item.RequestedQuantity))
			}
			continue
		}
		seen[item.Name] = true

		if total := matrix.AssignedTotal(item.Name); total != item.RequestedQuantity {
			errs = append(errs, fmt.Sprintf("Must assign exactly %d units of %s",
				item.RequestedQuantity, item.Name))
		}
	}

	for _, item := range matrix.Demand {
		for _, wid := range sortedWarehouseIDs(matrix.Cells[item.Name]) {
			cell := matrix.Cells[item.Name][wid]
			if cell.AssignedQuantity < 0 || cell.AssignedQuantity > cell.AvailableStock {
				errs = append(errs, fmt.Sprintf(
					"Assignment of %s in warehouse %d must be between 0 and %d",
					cell.ItemName, cell.WarehouseID, cell.AvailableStock))
			}
		}
	}

	return errs
}

// BuildCommands apportions every nonzero cell and groups the resulting debits
// into one package command per warehouse. Validate must have passed first.
//
// A cell whose apportionment exhausts its source records before covering the
// assignment aborts the whole command of its warehouse (never under-report a
// package's contents); the failure is returned alongside the commands that
// remain buildable. Commands are ordered by ascending warehouse id.
func (r *Reconciler) BuildCommands(
	matrix *domain.AllocationMatrix,
	requestID int,
	op domain.OperatorContext,
) ([]domain.PackageCommand, []*CellError) {
	debitsByWarehouse := make(map[int][]domain.Debit)
	warehouseNames := make(map[int]string)
	broken := make(map[int]bool)
	var cellErrs []*CellError

	for _, item := range matrix.Demand {
		for _, wid := range sortedWarehouseIDs(matrix.Cells[item.Name]) {
			cell := matrix.Cells[item.Name][wid]
			if cell.AssignedQuantity <= 0 {
				continue
			}
			warehouseNames[wid] = cell.WarehouseName

			debits, err := apportionCell(cell)
			if err != nil {
				r.logger.Error("Apportionment exhausted source records",
					zap.String("item", cell.ItemName),
					zap.Int("warehouse_id", cell.WarehouseID),
					zap.Error(err))
				cellErrs = append(cellErrs, err)
				broken[wid] = true
				continue
			}
			debitsByWarehouse[wid] = append(debitsByWarehouse[wid], debits...)
		}
	}

	var commands []domain.PackageCommand
	for _, wid := range sortedIDs(debitsByWarehouse) {
		if broken[wid] {
			continue
		}
		meta := domain.PackageMetadata{
			RequesterCI: op.CI,
			RequestCode: fmt.Sprintf("PED-%d", requestID),
			WarehouseID: wid,
		}
		commands = append(commands, domain.PackageCommand{
			PackageName: fmt.Sprintf("Paquete-%d-A%d", requestID, wid),
			Description: manifest.EncodeDescription(
				fmt.Sprintf("Paquete del pedido %d, almacen %s", requestID, warehouseNames[wid]),
				meta),
			RequestID:   requestID,
			WarehouseID: wid,
			Metadata:    meta,
			Debits:      debitsByWarehouse[wid],
		})
	}

	return commands, cellErrs
}

// apportionCell walks the cell's source records in store order and decides how
// much to debit from each.
//
// Sealed records are all-or-nothing: taken in full when the amount still to
// assign covers the whole record, skipped entirely otherwise. Partial records
// give up to their remaining quantity. The walk stops once the assignment is
// covered.
func apportionCell(cell *domain.AllocationCell) ([]domain.Debit, *CellError) {
	remaining := cell.AssignedQuantity
	debits := make([]domain.Debit, 0, len(cell.SourceRecords))

	for _, rec := range cell.SourceRecords {
		if remaining == 0 {
			break
		}
		take := 0
		switch rec.Policy {
		case domain.PolicySealed:
			if remaining >= rec.RemainingQuantity {
				take = rec.RemainingQuantity
			}
		default:
			take = rec.RemainingQuantity
			if remaining < take {
				take = remaining
			}
		}
		if take == 0 {
			continue
		}
		debits = append(debits, domain.Debit{
			DonationRecordID: rec.ID,
			Quantity:         take,
		})
		remaining -= take
	}

	if remaining != 0 {
		return nil, &CellError{
			ItemName:    cell.ItemName,
			WarehouseID: cell.WarehouseID,
			Unassigned:  remaining,
		}
	}
	return debits, nil
}

func sortedWarehouseIDs(row map[int]*domain.AllocationCell) []int {
	ids := make([]int, 0, len(row))
	for id := range row {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func sortedIDs(m map[int][]domain.Debit) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
