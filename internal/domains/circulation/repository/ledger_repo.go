package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/infrastructure/store"
)

const (
	tableItems = "items"
	tableLoans = "loans"
)

var itemColumns = []interface{}{
	"id", "copies_total", "copies_available", "version", "created_at", "updated_at",
}

type ledgerRepository struct {
	dialect goqu.DialectWrapper
}

func NewLedgerRepository(dialect goqu.DialectWrapper) LedgerRepository {
	return &ledgerRepository{dialect: dialect}
}

func (r *ledgerRepository) RegisterItem(ctx context.Context, q store.Querier, item *model.Item) error {
	ds := r.dialect.Insert(tableItems).Rows(goqu.Record{
		"id":               item.ID.String(),
		"copies_total":     item.CopiesTotal,
		"copies_available": item.CopiesAvailable,
		"version":          item.Version,
		"created_at":       item.CreatedAt,
		"updated_at":       item.UpdatedAt,
	})

	if _, err := store.Exec(ctx, q, ds); err != nil {
		if store.IsUniqueViolation(err) {
			return model.NewItemAlreadyExistsError(item.ID)
		}
		return fmt.Errorf("failed to register item: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetItem(ctx context.Context, q store.Querier, id uuid.UUID) (*model.Item, error) {
	ds := r.dialect.From(tableItems).
		Select(itemColumns...).
		Where(goqu.C("id").Eq(id.String()))

	var row itemRow
	if err := store.QueryRow(ctx, q, ds, row.dest()...); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, model.NewItemNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return row.toModel(), nil
}

func (r *ledgerRepository) ListItems(ctx context.Context, q store.Querier, limit, offset int) ([]model.Item, error) {
	ds := r.dialect.From(tableItems).
		Select(itemColumns...).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).
		Offset(uint(offset))

	items := make([]model.Item, 0, limit)
	err := store.QueryAll(ctx, q, ds, func(rows store.Rows) error {
		var row itemRow
		if err := rows.Scan(row.dest()...); err != nil {
			return err
		}
		items = append(items, *row.toModel())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// TryAcquireCopy is a single conditional decrement. Concurrent callers are
// serialised by the row lock the UPDATE takes, and each re-checks the
// predicate, so with K copies exactly K callers see one affected row.
func (r *ledgerRepository) TryAcquireCopy(ctx context.Context, q store.Querier, id uuid.UUID, now time.Time) error {
	ds := r.dialect.Update(tableItems).
		Set(goqu.Record{
			"copies_available": goqu.L("copies_available - 1"),
			"version":          goqu.L("version + 1"),
			"updated_at":       now,
		}).
		Where(
			goqu.C("id").Eq(id.String()),
			goqu.C("copies_available").Gt(0),
		)

	n, err := store.Exec(ctx, q, ds)
	if err != nil {
		return fmt.Errorf("failed to acquire copy: %w", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := r.GetItem(ctx, q, id); err != nil {
		return err
	}
	return model.Deny(model.ReasonNoCopiesAvailable, "item %s has no copies available", id)
}

func (r *ledgerRepository) ReleaseCopy(ctx context.Context, q store.Querier, id uuid.UUID, now time.Time) error {
	ds := r.dialect.Update(tableItems).
		Set(goqu.Record{
			"copies_available": goqu.L("copies_available + 1"),
			"version":          goqu.L("version + 1"),
			"updated_at":       now,
		}).
		Where(
			goqu.C("id").Eq(id.String()),
			goqu.C("copies_available").Lt(goqu.C("copies_total")),
		)

	n, err := store.Exec(ctx, q, ds)
	if err != nil {
		return fmt.Errorf("failed to release copy: %w", err)
	}
	if n == 1 {
		return nil
	}

	item, err := r.GetItem(ctx, q, id)
	if err != nil {
		return err
	}

	violation := model.NewInvariantViolationError(id, "release", item.CopiesTotal, item.CopiesAvailable)
	log.Error().
		Err(violation).
		Str("item_id", id.String()).
		Int("copies_total", item.CopiesTotal).
		Int("copies_available", item.CopiesAvailable).
		Msg("[LEDGER] Release on a full item")
	return violation
}

func (r *ledgerRepository) Resize(ctx context.Context, q store.Querier, id uuid.UUID, newTotal int, now time.Time) (*model.Item, error) {
	ds := r.dialect.Update(tableItems).
		Set(goqu.Record{
			"copies_total":     newTotal,
			"copies_available": goqu.L("copies_available + (? - copies_total)", newTotal),
			"version":          goqu.L("version + 1"),
			"updated_at":       now,
		}).
		Where(
			goqu.C("id").Eq(id.String()),
			goqu.L("copies_total - copies_available <= ?", newTotal),
		)

	n, err := store.Exec(ctx, q, ds)
	if err != nil {
		if store.IsCheckViolation(err) {
			return nil, fmt.Errorf("%w: resize item=%s to %d: %v", model.ErrInvariantViolation, id, newTotal, err)
		}
		return nil, fmt.Errorf("failed to resize item: %w", err)
	}

	item, err := r.GetItem(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, model.Deny(model.ReasonResizeBelowOutstanding,
			"item %s has %d copies on loan, cannot resize to %d", id, item.Outstanding(), newTotal)
	}
	return item, nil
}

type itemRow struct {
	id        uuid.UUID
	total     int
	available int
	version   int64
	createdAt store.Timestamp
	updatedAt store.Timestamp
}

func (row *itemRow) dest() []any {
	return []any{&row.id, &row.total, &row.available, &row.version, &row.createdAt, &row.updatedAt}
}

func (row *itemRow) toModel() *model.Item {
	return &model.Item{
		ID:              row.id,
		CopiesTotal:     row.total,
		CopiesAvailable: row.available,
		Version:         row.version,
		CreatedAt:       row.createdAt.Time,
		UpdatedAt:       row.updatedAt.Time,
	}
}
