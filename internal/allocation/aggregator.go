// Package allocation builds the item-by-warehouse staging matrix for a help
// request and reconciles the operator's assignments into package commands.
package allocation

import (
	"github.com/caridad-cloud/allocation-service/internal/domain"
	"go.uber.org/zap"
)

// Aggregator groups available donation stock by warehouse for each demanded
// item. It works on a snapshot; stock can change between aggregation and
// submission, and the donation-records service rules at debit time.
type Aggregator struct {
	logger *zap.Logger
}

func NewAggregator(logger *zap.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// BuildMatrix produces the allocation matrix for the given demand.
//
// Matching is a case-sensitive exact match on the catalog-resolved item name,
// and only records with remaining stock participate. Source records keep the
// order the donation-records service returned them in (ascending by record
// id); that order is the draw order during apportionment, so first-listed
// records are consumed first. Every cell starts with assigned quantity 0.
func (a *Aggregator) BuildMatrix(
	demand []domain.DemandItem,
	records []domain.DonationRecord,
	warehouses []domain.Warehouse,
) *domain.AllocationMatrix {
	names := make(map[int]string, len(warehouses))
	for _, w := range warehouses {
		names[w.ID] = w.Name
	}

	matrix := &domain.AllocationMatrix{
		Demand: demand,
		Cells:  make(map[string]map[int]*domain.AllocationCell, len(demand)),
	}

	for _, item := range demand {
		if _, ok := matrix.Cells[item.Name]; ok {
			// Duplicate manifest lines share one row; demand keeps both.
			continue
		}
		row := make(map[int]*domain.AllocationCell)

		for _, rec := range records {
			if rec.ItemName != item.Name || rec.RemainingQuantity <= 0 {
				continue
			}
			cell, ok := row[rec.WarehouseID]
			if !ok {
				cell = &domain.AllocationCell{
					ItemName:      item.Name,
					WarehouseID:   rec.WarehouseID,
					WarehouseName: names[rec.WarehouseID],
				}
				row[rec.WarehouseID] = cell
			}
			cell.AvailableStock += rec.RemainingQuantity
			cell.SourceRecords = append(cell.SourceRecords, rec)
		}

		matrix.Cells[item.Name] = row

		if len(row) == 0 {
			a.logger.Warn("No stock found for demanded item",
				zap.String("item", item.Name),
				zap.Int("requested", item.RequestedQuantity))
		}
	}

	return matrix
}
