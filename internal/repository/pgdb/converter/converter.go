package converter

import (
	"fmt"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	minPopularity = decimal.Zero
	maxPopularity = decimal.NewFromInt(1)
)

// CatalogConverter преобразует записи catalog_items в доменные атрибуты.
type CatalogConverter struct{}

func NewCatalogConverter() CatalogConverter {
	return CatalogConverter{}
}

// ToEntity разбирает запись. Пустая популярность считается нулевой,
// значения вне [0, 1] прижимаются к границам.
func (CatalogConverter) ToEntity(model *CatalogItemModel) (domain.CatalogAttributes, error) {
	popularity := decimal.Zero
	if model.PopularityScore != nil && *model.PopularityScore != "" {
		d, err := decimal.NewFromString(*model.PopularityScore)
		if err != nil {
			return domain.CatalogAttributes{}, fmt.Errorf("item %q: popularity %q: %w", model.ItemID, *model.PopularityScore, err)
		}
		popularity = decimal.Min(decimal.Max(d, minPopularity), maxPopularity)
	}

	return domain.NewCatalogAttributes(
		model.ItemID,
		deref(model.ParentID),
		domain.ParseGender(deref(model.Gender)),
		popularity.InexactFloat64(),
	), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
