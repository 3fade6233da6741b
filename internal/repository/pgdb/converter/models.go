package converter

// CatalogItemModel представляет запись таблицы catalog_items в PostgreSQL.
// Популярность читается как текст, чтобы не терять точность NUMERIC.
type CatalogItemModel struct {
	ItemID          string  `db:"item_id"`
	ParentID        *string `db:"parent_id"`
	Gender          *string `db:"gender"`
	PopularityScore *string `db:"popularity_score"`
}
