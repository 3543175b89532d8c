package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/infrastructure/store"
)

const (
	openLoansOfItem     = "(SELECT COUNT(*) FROM loans l WHERE l.item_id = i.id AND l.returned_at IS NULL)"
	lifetimeLoansOfItem = "(SELECT COUNT(*) FROM loans l WHERE l.item_id = i.id)"
)

type queryRepository struct {
	dialect goqu.DialectWrapper
}

func NewQueryRepository(dialect goqu.DialectWrapper) QueryRepository {
	return &queryRepository{dialect: dialect}
}

// Availability reads the counters and both loan counts in one statement so
// the four numbers come from the same snapshot.
func (r *queryRepository) Availability(ctx context.Context, q store.Querier, itemID uuid.UUID) (*model.Availability, error) {
	ds := r.dialect.From(goqu.T(tableItems).As("i")).
		Select(
			goqu.I("i.copies_total"),
			goqu.I("i.copies_available"),
			goqu.L(openLoansOfItem).As("open_loan_count"),
			goqu.L(lifetimeLoansOfItem).As("lifetime_loan_count"),
		).
		Where(goqu.I("i.id").Eq(itemID.String()))

	var (
		total, available    int
		openLoans, lifetime int64
	)
	if err := store.QueryRow(ctx, q, ds, &total, &available, &openLoans, &lifetime); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, model.NewItemNotFoundError(itemID)
		}
		return nil, fmt.Errorf("failed to read availability: %w", err)
	}

	return &model.Availability{
		ItemID:            itemID,
		CopiesTotal:       total,
		CopiesAvailable:   available,
		OpenLoanCount:     int(openLoans),
		LifetimeLoanCount: int(lifetime),
	}, nil
}

func (r *queryRepository) Statistics(ctx context.Context, q store.Querier, now time.Time) (*model.LoanStatistics, error) {
	ds := r.dialect.From(tableLoans).Select(
		goqu.COUNT(goqu.Star()),
		goqu.L("COALESCE(SUM(CASE WHEN returned_at IS NULL THEN 1 ELSE 0 END), 0)"),
		goqu.L("COALESCE(SUM(CASE WHEN returned_at IS NOT NULL THEN 1 ELSE 0 END), 0)"),
		goqu.L("COALESCE(SUM(CASE WHEN returned_at IS NULL AND due_at < ? THEN 1 ELSE 0 END), 0)", now),
		goqu.L("COALESCE(SUM(CASE WHEN returned_at IS NULL THEN fine_amount ELSE 0 END), 0)"),
		goqu.L("COALESCE(SUM(CASE WHEN returned_at IS NOT NULL THEN fine_amount ELSE 0 END), 0)"),
	)

	var (
		total, open, returned, overdue int64
		outstanding, collected         decimal.Decimal
	)
	if err := store.QueryRow(ctx, q, ds, &total, &open, &returned, &overdue, &outstanding, &collected); err != nil {
		return nil, fmt.Errorf("failed to read loan statistics: %w", err)
	}

	stats := &model.LoanStatistics{
		TotalLoans:       int(total),
		OpenLoans:        int(open),
		ReturnedLoans:    int(returned),
		OverdueLoans:     int(overdue),
		OutstandingFines: outstanding.Round(2),
		CollectedFines:   collected.Round(2),
	}
	if total > 0 {
		stats.CompletionRate = float64(returned) / float64(total)
	}
	if open > 0 {
		stats.OverdueRate = float64(overdue) / float64(open)
	}
	return stats, nil
}

// ConservationViolations lists items whose available count differs from
// copies_total minus their open loans.
func (r *queryRepository) ConservationViolations(ctx context.Context, q store.Querier) ([]model.ConservationViolation, error) {
	ds := r.dialect.From(goqu.T(tableItems).As("i")).
		Select(
			goqu.I("i.id"),
			goqu.I("i.copies_total"),
			goqu.I("i.copies_available"),
			goqu.L(openLoansOfItem).As("open_loan_count"),
		).
		Where(goqu.L("i.copies_available <> i.copies_total - " + openLoansOfItem)).
		Order(goqu.I("i.id").Asc())

	violations := []model.ConservationViolation{}
	err := store.QueryAll(ctx, q, ds, func(rows store.Rows) error {
		var (
			v         model.ConservationViolation
			openLoans int64
		)
		if err := rows.Scan(&v.ItemID, &v.CopiesTotal, &v.CopiesAvailable, &openLoans); err != nil {
			return err
		}
		v.OpenLoanCount = int(openLoans)
		violations = append(violations, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check conservation: %w", err)
	}
	return violations, nil
}
