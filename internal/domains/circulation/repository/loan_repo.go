package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/infrastructure/store"
)

var loanColumns = []interface{}{
	"id", "borrower_id", "item_id", "opened_at", "due_at",
	"returned_at", "fine_amount", "renewal_count", "close_reason",
}

type loanRepository struct {
	dialect goqu.DialectWrapper
}

func NewLoanRepository(dialect goqu.DialectWrapper) LoanRepository {
	return &loanRepository{dialect: dialect}
}

func (r *loanRepository) Open(ctx context.Context, q store.Querier, loan *model.Loan) error {
	ds := r.dialect.Insert(tableLoans).Rows(goqu.Record{
		"id":            loan.ID.String(),
		"borrower_id":   loan.BorrowerID.String(),
		"item_id":       loan.ItemID.String(),
		"opened_at":     loan.OpenedAt,
		"due_at":        loan.DueAt,
		"returned_at":   nil,
		"fine_amount":   loan.FineAmount.StringFixed(2),
		"renewal_count": loan.RenewalCount,
		"close_reason":  nil,
	})

	if _, err := store.Exec(ctx, q, ds); err != nil {
		if store.IsForeignKeyViolation(err) {
			return model.NewItemNotFoundError(loan.ItemID)
		}
		return fmt.Errorf("failed to open loan: %w", err)
	}
	return nil
}

func (r *loanRepository) GetByID(ctx context.Context, q store.Querier, id uuid.UUID) (*model.Loan, error) {
	ds := r.dialect.From(tableLoans).
		Select(loanColumns...).
		Where(goqu.C("id").Eq(id.String()))

	var row loanRow
	if err := store.QueryRow(ctx, q, ds, row.dest()...); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, model.NewLoanNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return row.toModel(), nil
}

// Close only matches an open loan, so of two racing closers exactly one
// sees an affected row.
func (r *loanRepository) Close(
	ctx context.Context,
	q store.Querier,
	id uuid.UUID,
	at time.Time,
	fine decimal.Decimal,
	reason model.CloseReason,
) (bool, error) {
	ds := r.dialect.Update(tableLoans).
		Set(goqu.Record{
			"returned_at":  at,
			"fine_amount":  fine.StringFixed(2),
			"close_reason": string(reason),
		}).
		Where(
			goqu.C("id").Eq(id.String()),
			goqu.C("returned_at").IsNull(),
		)

	n, err := store.Exec(ctx, q, ds)
	if err != nil {
		return false, fmt.Errorf("failed to close loan: %w", err)
	}
	return n == 1, nil
}

func (r *loanRepository) Renew(ctx context.Context, q store.Querier, id uuid.UUID, expectedRenewals int, newDue time.Time) (bool, error) {
	ds := r.dialect.Update(tableLoans).
		Set(goqu.Record{
			"due_at":        newDue,
			"renewal_count": goqu.L("renewal_count + 1"),
		}).
		Where(
			goqu.C("id").Eq(id.String()),
			goqu.C("returned_at").IsNull(),
			goqu.C("renewal_count").Eq(expectedRenewals),
		)

	n, err := store.Exec(ctx, q, ds)
	if err != nil {
		return false, fmt.Errorf("failed to renew loan: %w", err)
	}
	return n == 1, nil
}

func (r *loanRepository) Delete(ctx context.Context, q store.Querier, id uuid.UUID, openOnly bool) (bool, error) {
	where := []exp.Expression{goqu.C("id").Eq(id.String())}
	if openOnly {
		where = append(where, goqu.C("returned_at").IsNull())
	}
	ds := r.dialect.Delete(tableLoans).Where(where...)

	n, err := store.Exec(ctx, q, ds)
	if err != nil {
		return false, fmt.Errorf("failed to delete loan: %w", err)
	}
	return n == 1, nil
}

// UpdateAccruedFine stores the running fine of an open loan. Closed loans keep
// the fine fixed at return time.
func (r *loanRepository) UpdateAccruedFine(ctx context.Context, q store.Querier, id uuid.UUID, fine decimal.Decimal) (bool, error) {
	ds := r.dialect.Update(tableLoans).
		Set(goqu.Record{"fine_amount": fine.StringFixed(2)}).
		Where(
			goqu.C("id").Eq(id.String()),
			goqu.C("returned_at").IsNull(),
		)

	n, err := store.Exec(ctx, q, ds)
	if err != nil {
		return false, fmt.Errorf("failed to update accrued fine: %w", err)
	}
	return n == 1, nil
}

func (r *loanRepository) CountOpenByBorrower(ctx context.Context, q store.Querier, borrowerID uuid.UUID) (int, error) {
	ds := r.dialect.From(tableLoans).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.C("borrower_id").Eq(borrowerID.String()),
			goqu.C("returned_at").IsNull(),
		)

	var count int64
	if err := store.QueryRow(ctx, q, ds, &count); err != nil {
		return 0, fmt.Errorf("failed to count open loans: %w", err)
	}
	return int(count), nil
}

func (r *loanRepository) List(ctx context.Context, q store.Querier, filter model.LoanFilter, now time.Time) ([]model.Loan, error) {
	where := []exp.Expression{}

	switch filter.Status {
	case model.LoanStatusOpen:
		where = append(where, goqu.C("returned_at").IsNull())
	case model.LoanStatusReturned:
		where = append(where, goqu.C("returned_at").IsNotNull())
	case model.LoanStatusOverdue:
		where = append(where, goqu.C("returned_at").IsNull(), goqu.C("due_at").Lt(now))
	}
	if filter.BorrowerID != nil {
		where = append(where, goqu.C("borrower_id").Eq(filter.BorrowerID.String()))
	}
	if filter.ItemID != nil {
		where = append(where, goqu.C("item_id").Eq(filter.ItemID.String()))
	}

	ds := r.dialect.From(tableLoans).
		Select(loanColumns...).
		Where(where...).
		Order(goqu.C("opened_at").Desc(), goqu.C("id").Asc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit)).Offset(uint(filter.Offset))
	}

	return r.collect(ctx, q, ds)
}

func (r *loanRepository) ListOverdue(ctx context.Context, q store.Querier, now time.Time, limit int) ([]model.Loan, error) {
	ds := r.dialect.From(tableLoans).
		Select(loanColumns...).
		Where(
			goqu.C("returned_at").IsNull(),
			goqu.C("due_at").Lt(now),
		).
		Order(goqu.C("due_at").Asc(), goqu.C("id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	return r.collect(ctx, q, ds)
}

func (r *loanRepository) collect(ctx context.Context, q store.Querier, ds *goqu.SelectDataset) ([]model.Loan, error) {
	loans := []model.Loan{}
	err := store.QueryAll(ctx, q, ds, func(rows store.Rows) error {
		var row loanRow
		if err := rows.Scan(row.dest()...); err != nil {
			return err
		}
		loans = append(loans, *row.toModel())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

type loanRow struct {
	id         uuid.UUID
	borrowerID uuid.UUID
	itemID     uuid.UUID
	openedAt   store.Timestamp
	dueAt      store.Timestamp
	returnedAt store.NullTimestamp
	fine       decimal.Decimal
	renewals   int
	reason     sql.NullString
}

func (row *loanRow) dest() []any {
	return []any{
		&row.id, &row.borrowerID, &row.itemID, &row.openedAt, &row.dueAt,
		&row.returnedAt, &row.fine, &row.renewals, &row.reason,
	}
}

func (row *loanRow) toModel() *model.Loan {
	loan := &model.Loan{
		ID:           row.id,
		BorrowerID:   row.borrowerID,
		ItemID:       row.itemID,
		OpenedAt:     row.openedAt.Time,
		DueAt:        row.dueAt.Time,
		ReturnedAt:   row.returnedAt.Ptr(),
		FineAmount:   row.fine.Round(2),
		RenewalCount: row.renewals,
	}
	if row.reason.Valid {
		reason := model.CloseReason(row.reason.String)
		loan.CloseReason = &reason
	}
	return loan
}
