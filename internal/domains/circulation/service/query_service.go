package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/domains/circulation/policy"
)

func (s *CirculationService) GetAvailability(ctx context.Context, itemID uuid.UUID) (*model.Availability, error) {
	return s.queries.Availability(ctx, s.store, itemID)
}

func (s *CirculationService) GetLoan(ctx context.Context, loanID uuid.UUID) (*model.LoanResponse, error) {
	loan, err := s.loans.GetByID(ctx, s.store, loanID)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(*loan, s.now())
	return &resp, nil
}

func (s *CirculationService) ListLoans(ctx context.Context, req model.ListLoansRequest) (*model.ListLoansResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewInvalidInputError(err)
	}
	filter := req.ToFilter()
	now := s.now()

	loans, err := s.loans.List(ctx, s.store, filter, now)
	if err != nil {
		return nil, err
	}

	return &model.ListLoansResponse{
		Loans: s.toResponses(loans, now),
		Page:  filter.Offset/filter.Limit + 1,
		Limit: filter.Limit,
	}, nil
}

func (s *CirculationService) ListOverdue(ctx context.Context, limit int) ([]model.LoanResponse, error) {
	_, limit = normalizePage(1, limit)
	now := s.now()

	loans, err := s.loans.ListOverdue(ctx, s.store, now, limit)
	if err != nil {
		return nil, err
	}
	return s.toResponses(loans, now), nil
}

func (s *CirculationService) Statistics(ctx context.Context) (*model.LoanStatistics, error) {
	return s.queries.Statistics(ctx, s.store, s.now())
}

// RefreshOverdueFines writes the fine accrued so far at the configured rate
// onto each open overdue loan. Loans closed meanwhile are skipped by the
// update guard.
func (s *CirculationService) RefreshOverdueFines(ctx context.Context) (int, error) {
	now := s.now()
	perDay := s.policy.Config().FinePerDay

	overdue, err := s.loans.ListOverdue(ctx, s.store, now, 0)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range overdue {
		loan := &overdue[i]
		fine := policy.Fine(loan, now, perDay)
		if fine.Equal(loan.FineAmount) {
			continue
		}
		ok, err := s.loans.UpdateAccruedFine(ctx, s.store, loan.ID, fine)
		if err != nil {
			return updated, err
		}
		if ok {
			updated++
		}
	}

	log.Info().
		Int("overdue_loans", len(overdue)).
		Int("updated", updated).
		Msg("[CIRCULATION] Accrued fines refreshed")
	return updated, nil
}

// Reconcile compares every item's counter with its open loans. Mismatches
// are logged at error level and returned; nothing is repaired automatically.
func (s *CirculationService) Reconcile(ctx context.Context) (*model.ReconcileResponse, error) {
	violations, err := s.queries.ConservationViolations(ctx, s.store)
	if err != nil {
		return nil, err
	}

	for _, v := range violations {
		log.Error().
			Err(model.ErrInvariantViolation).
			Str("item_id", v.ItemID.String()).
			Int("copies_total", v.CopiesTotal).
			Int("copies_available", v.CopiesAvailable).
			Int("open_loans", v.OpenLoanCount).
			Int("expected_available", v.Expected()).
			Msg("[LEDGER] Counter disagrees with open loans")
	}

	return &model.ReconcileResponse{
		CheckedAt:  s.now(),
		Violations: violations,
	}, nil
}

func (s *CirculationService) toResponses(loans []model.Loan, now time.Time) []model.LoanResponse {
	out := make([]model.LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, s.toResponse(l, now))
	}
	return out
}

// toResponse fills the derived fields. Closed loans report their final fine;
// open ones the fine they would owe if returned now.
func (s *CirculationService) toResponse(loan model.Loan, now time.Time) model.LoanResponse {
	resp := model.LoanResponse{
		Loan:        loan,
		IsOverdue:   loan.IsOverdue(now),
		DaysOverdue: loan.DaysOverdue(now),
		AccruedFine: loan.FineAmount,
	}
	if loan.IsOpen() {
		resp.AccruedFine = policy.Fine(&loan, now, s.policy.Config().FinePerDay)
	}
	return resp
}
