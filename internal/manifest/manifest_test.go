package manifest

import (
	"testing"

	"github.com/caridad-cloud/allocation-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestParse(t *testing.T) {
	logger := zap.NewNop()

	t.Run("well-formed manifest", func(t *testing.T) {
		items := Parse("Agua:2,Arroz:3", logger)

		assert.Equal(t, []domain.DemandItem{
			{Name: "Agua", RequestedQuantity: 2},
			{Name: "Arroz", RequestedQuantity: 3},
		}, items)
	})

	t.Run("malformed entries are dropped, bad quantities default to zero", func(t *testing.T) {
		items := Parse("Agua:2,BadEntry,Arroz:x", logger)

		assert.Equal(t, []domain.DemandItem{
			{Name: "Agua", RequestedQuantity: 2},
			{Name: "Arroz", RequestedQuantity: 0},
		}, items)
	})

	t.Run("negative quantity defaults to zero", func(t *testing.T) {
		items := Parse("Agua:-5", logger)

		assert.Equal(t, []domain.DemandItem{
			{Name: "Agua", RequestedQuantity: 0},
		}, items)
	})

	t.Run("names and quantities are trimmed", func(t *testing.T) {
		items := Parse(" Agua : 2 , Arroz :3", logger)

		assert.Equal(t, []domain.DemandItem{
			{Name: "Agua", RequestedQuantity: 2},
			{Name: "Arroz", RequestedQuantity: 3},
		}, items)
	})

	t.Run("empty manifest yields empty list", func(t *testing.T) {
		assert.Empty(t, Parse("", logger))
		assert.Empty(t, Parse("   ", logger))
	})

	t.Run("duplicate names are not merged", func(t *testing.T) {
		items := Parse("Agua:2,Agua:3", logger)

		assert.Equal(t, []domain.DemandItem{
			{Name: "Agua", RequestedQuantity: 2},
			{Name: "Agua", RequestedQuantity: 3},
		}, items)
	})

	t.Run("entry with empty name is dropped", func(t *testing.T) {
		items := Parse(":4,Arroz:1", logger)

		assert.Equal(t, []domain.DemandItem{
			{Name: "Arroz", RequestedQuantity: 1},
		}, items)
	})
}
