// Package registry сопоставляет внешние идентификаторы вариантов позициям в векторном индексе.
package registry

import (
	"fmt"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/cespare/xxhash/v2"
)

// Registry — неизменяемая биекция id <-> позиция, построенная вместе с индексом.
type Registry struct {
	ids         []string
	positions   map[string]int
	fingerprint uint64
}

// New строит реестр: i-й идентификатор получает позицию i.
func New(ids []string) (*Registry, error) {
	r := &Registry{
		ids:       make([]string, len(ids)),
		positions: make(map[string]int, len(ids)),
	}

	h := xxhash.New()
	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("empty id at position %d: %w", i, e.ErrInvalidArgument)
		}
		if prev, ok := r.positions[id]; ok {
			return nil, fmt.Errorf("%q at positions %d and %d: %w", id, prev, i, e.ErrDuplicateID)
		}
		r.ids[i] = id
		r.positions[id] = i

		_, _ = h.WriteString(id)
		_, _ = h.Write([]byte{0})
	}
	r.fingerprint = h.Sum64()

	return r, nil
}

// Position возвращает позицию идентификатора.
func (r *Registry) Position(id string) (int, bool) {
	pos, ok := r.positions[id]
	return pos, ok
}

// ID возвращает идентификатор по позиции.
func (r *Registry) ID(pos int) (string, bool) {
	if pos < 0 || pos >= len(r.ids) {
		return "", false
	}
	return r.ids[pos], true
}

func (r *Registry) Len() int {
	return len(r.ids)
}

// IDs возвращает копию идентификаторов в порядке позиций.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Fingerprint — хэш упорядоченного списка идентификаторов. Индекс хранит тот же
// отпечаток, что позволяет обнаружить артефакт из разных поколений.
func (r *Registry) Fingerprint() uint64 {
	return r.fingerprint
}
