package game

import "council-server/internal/models"

// ResourceLedger - чистый value-тип с пятью именованными ресурсами,
// каждый зажат в диапазоне [0,100].
type ResourceLedger map[models.ResourceType]int

// NewResourceLedger создает леджер со стартовыми значениями.
func NewResourceLedger() ResourceLedger {
	ledger := make(ResourceLedger, len(models.ResourceTypes))
	for _, rt := range models.ResourceTypes {
		ledger[rt] = models.ResourceInitial
	}
	return ledger
}

// ResourceLedgerFrom восстанавливает леджер из персистентного снимка.
// Отсутствующие ключи получают стартовое значение.
func ResourceLedgerFrom(values map[models.ResourceType]int) ResourceLedger {
	ledger := NewResourceLedger()
	for rt, v := range values {
		ledger[rt] = clamp(v)
	}
	return ledger
}

// Apply применяет все дельты атомарно и возвращает true, если после
// применения хотя бы один ресурс исчерпан. Депривация проверяется один
// раз после применения всех дельт, а не по ходу итерации.
func (l ResourceLedger) Apply(deltas map[models.ResourceType]int) bool {
	for rt, delta := range deltas {
		if _, ok := l[rt]; !ok {
			continue // неизвестный ресурс игнорируем
		}
		l[rt] = clamp(l[rt] + delta)
	}
	return l.Depleted()
}

// Depleted сообщает, исчерпан ли хотя бы один ресурс.
func (l ResourceLedger) Depleted() bool {
	for _, v := range l {
		if v <= models.ResourceMin {
			return true
		}
	}
	return false
}

// Snapshot возвращает копию значений для сериализации и broadcast.
func (l ResourceLedger) Snapshot() map[models.ResourceType]int {
	out := make(map[models.ResourceType]int, len(l))
	for rt, v := range l {
		out[rt] = v
	}
	return out
}

func clamp(v int) int {
	if v < models.ResourceMin {
		return models.ResourceMin
	}
	if v > models.ResourceMax {
		return models.ResourceMax
	}
	return v
}
