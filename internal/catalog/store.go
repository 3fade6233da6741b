// Package catalog хранит снимок атрибутов каталога, нужных для ранжирования.
package catalog

import "github.com/DRSN-tech/recommender/internal/domain"

// Store — неизменяемый снимок атрибутов вариантов по идентификатору.
type Store struct {
	attrs map[string]domain.CatalogAttributes
}

// NewStore строит снимок. Записи без идентификатора пропускаются,
// при повторе идентификатора побеждает последняя запись.
func NewStore(items []domain.CatalogAttributes) *Store {
	attrs := make(map[string]domain.CatalogAttributes, len(items))
	for _, it := range items {
		if it.ItemID == "" {
			continue
		}
		attrs[it.ItemID] = it
	}
	return &Store{attrs: attrs}
}

// Get возвращает атрибуты варианта.
func (s *Store) Get(itemID string) (domain.CatalogAttributes, bool) {
	a, ok := s.attrs[itemID]
	return a, ok
}

func (s *Store) Len() int {
	return len(s.attrs)
}
