package pgdb

import (
	"context"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/DRSN-tech/recommender/pkg/tr"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jimlawless/whereami"
)

// CatalogRepo читает атрибуты вариантов из PostgreSQL.
type CatalogRepo struct {
	dbPool transaction.Transactional
	conv   converter.CatalogConverter
	logger logger.Logger
}

func NewCatalogRepo(dbPool transaction.Transactional, conv converter.CatalogConverter, logger logger.Logger) *CatalogRepo {
	return &CatalogRepo{
		dbPool: dbPool,
		conv:   conv,
		logger: logger,
	}
}

// LoadAll возвращает согласованный снимок каталога, прочитанный в одной
// read-only транзакции с уровнем изоляции repeatable read.
func (c *CatalogRepo) LoadAll(ctx context.Context) (items []domain.CatalogAttributes, err error) {
	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, c.dbPool)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				c.logger.Warnf("catalog snapshot rollback failed: %v", rbErr)
			}
		}
	}()
	ctx = tr.WithTx(ctx, tx.Transaction())

	items, err = c.selectAll(ctx)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return items, nil
}

func (c *CatalogRepo) selectAll(ctx context.Context) ([]domain.CatalogAttributes, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		SELECT item_id, parent_id, gender, popularity_score::text
		FROM catalog_items
		ORDER BY item_id;
	`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	var (
		items   []domain.CatalogAttributes
		invalid int
	)
	for rows.Next() {
		var model converter.CatalogItemModel
		if err := rows.Scan(&model.ItemID, &model.ParentID, &model.Gender, &model.PopularityScore); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		attrs, err := c.conv.ToEntity(&model)
		if err != nil {
			invalid++
			c.logger.Warnf("skipping catalog row: %v", err)
			continue
		}
		items = append(items, attrs)
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	c.logger.Debugf("catalog snapshot: %d rows (%d invalid)", len(items), invalid)
	return items, nil
}
