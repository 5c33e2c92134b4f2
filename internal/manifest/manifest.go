// Package manifest parses the free-text demand manifests attached to help
// requests and the legacy descripcion tag strings carried by package records.
package manifest

import (
	"strconv"
	"strings"

	"github.com/caridad-cloud/allocation-service/internal/domain"
	"go.uber.org/zap"
)

// Parse turns a "name1:qty1,name2:qty2" manifest into demand items.
//
// Malformed pairs (no colon, empty name) are dropped with a warning; a pair
// whose quantity does not parse as a non-negative integer is kept with
// quantity 0. Input order is preserved and repeated names are not merged.
// An empty manifest yields an empty list, never an error.
func Parse(raw string, logger *zap.Logger) []domain.DemandItem {
	items := []domain.DemandItem{}
	if strings.TrimSpace(raw) == "" {
		return items
	}

	for _, entry := range strings.Split(raw, ",") {
		name, qtyText, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			logger.Warn("Dropping malformed manifest entry",
				zap.String("entry", entry))
			continue
		}

		qty, err := strconv.Atoi(strings.TrimSpace(qtyText))
		if err != nil || qty < 0 {
			logger.Warn("Manifest quantity not a non-negative integer, defaulting to 0",
				zap.String("item", name),
				zap.String("quantity", qtyText))
			qty = 0
		}

		items = append(items, domain.DemandItem{
			Name:              name,
			RequestedQuantity: qty,
		})
	}

	return items
}
