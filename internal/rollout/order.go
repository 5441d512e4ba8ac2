package rollout

import (
	"hash/fnv"
	"sort"

	"github.com/google/uuid"
)

// OrderTenants возвращает детерминированный порядок tenants для одного
// rollout.
//
// Порядок — сортировка по FNV-1a хэшу (rollout_id, workspace_id).
// Подмешивание rollout_id даёт разным раскаткам разные canary-подмножества,
// а внутри одной раскатки порядок воспроизводим: волна N всегда выбирает
// одну и ту же дельту, повторный вызов не передиспатчит уже обновлённых.
func OrderTenants(rolloutID uuid.UUID, tenants []uuid.UUID) []uuid.UUID {
	type ranked struct {
		id   uuid.UUID
		hash uint64
	}

	ordered := make([]ranked, len(tenants))
	for i, id := range tenants {
		h := fnv.New64a()
		h.Write(rolloutID[:])
		h.Write(id[:])
		ordered[i] = ranked{id: id, hash: h.Sum64()}
	}

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].hash != ordered[j].hash {
			return ordered[i].hash < ordered[j].hash
		}
		return ordered[i].id.String() < ordered[j].id.String()
	})

	out := make([]uuid.UUID, len(ordered))
	for i, r := range ordered {
		out[i] = r.id
	}
	return out
}
