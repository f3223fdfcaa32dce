package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-server/internal/models"
)

func TestNewResourceLedger(t *testing.T) {
	ledger := NewResourceLedger()
	require.Len(t, ledger, len(models.ResourceTypes))
	for _, rt := range models.ResourceTypes {
		assert.Equal(t, models.ResourceInitial, ledger[rt])
	}
	assert.False(t, ledger.Depleted())
}

func TestResourceLedger_Apply_Clamping(t *testing.T) {
	ledger := NewResourceLedger()

	// Значения выше 100 зажимаются сверху
	depleted := ledger.Apply(map[models.ResourceType]int{
		models.ResourceTech: +50,
	})
	assert.False(t, depleted)
	assert.Equal(t, models.ResourceMax, ledger[models.ResourceTech])

	// Значения ниже 0 зажимаются снизу, но ноль уже означает исчерпание
	depleted = ledger.Apply(map[models.ResourceType]int{
		models.ResourceTrust: -150,
	})
	assert.True(t, depleted)
	assert.Equal(t, models.ResourceMin, ledger[models.ResourceTrust])
}

func TestResourceLedger_Apply_MixedDeltas(t *testing.T) {
	ledger := ResourceLedgerFrom(map[models.ResourceType]int{
		models.ResourceTech:      90,
		models.ResourceManpower:  15,
		models.ResourceEconomy:   50,
		models.ResourceHappiness: 10,
		models.ResourceTrust:     95,
	})

	depleted := ledger.Apply(map[models.ResourceType]int{
		models.ResourceTech:      +10,
		models.ResourceManpower:  -20,
		models.ResourceEconomy:   0,
		models.ResourceHappiness: -15,
		models.ResourceTrust:     +5,
	})

	assert.True(t, depleted)
	assert.Equal(t, 100, ledger[models.ResourceTech])
	assert.Equal(t, 0, ledger[models.ResourceManpower])
	assert.Equal(t, 50, ledger[models.ResourceEconomy])
	assert.Equal(t, 0, ledger[models.ResourceHappiness])
	assert.Equal(t, 100, ledger[models.ResourceTrust])
}

func TestResourceLedger_Apply_AllDeltasBeforeDepletionCheck(t *testing.T) {
	// Дельта, поднимающая ресурс обратно выше нуля в том же применении,
	// не спасает от исчерпания другого ресурса.
	ledger := ResourceLedgerFrom(map[models.ResourceType]int{
		models.ResourceTech:      5,
		models.ResourceManpower:  100,
		models.ResourceEconomy:   100,
		models.ResourceHappiness: 100,
		models.ResourceTrust:     100,
	})

	depleted := ledger.Apply(map[models.ResourceType]int{
		models.ResourceTech:     -5,
		models.ResourceManpower: +10,
	})
	assert.True(t, depleted)
}

func TestResourceLedger_Apply_UnknownResourceIgnored(t *testing.T) {
	ledger := NewResourceLedger()
	depleted := ledger.Apply(map[models.ResourceType]int{
		models.ResourceType("mana"): -100,
	})
	assert.False(t, depleted)
	assert.Len(t, ledger, len(models.ResourceTypes))
}

func TestResourceLedger_Snapshot_IsCopy(t *testing.T) {
	ledger := NewResourceLedger()
	snap := ledger.Snapshot()
	snap[models.ResourceTech] = 1

	assert.Equal(t, models.ResourceInitial, ledger[models.ResourceTech])
}
