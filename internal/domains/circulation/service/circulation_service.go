package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/domains/circulation/policy"
	"circulation-backend/internal/domains/circulation/repository"
	"circulation-backend/internal/infrastructure/store"
	"circulation-backend/pkg/retry"
)

const tracerName = "circulation-backend/circulation"

// CirculationService coordinates the ledger, the loan store and the policy
// engine. Every state change that touches both a loan and a counter runs in
// one store transaction.
type CirculationService struct {
	store    store.Store
	ledger   repository.LedgerRepository
	loans    repository.LoanRepository
	queries  repository.QueryRepository
	policy   *policy.Engine
	notifier OverrideNotifier
	tracer   trace.Tracer
	clock    func() time.Time
}

// Option customises a CirculationService.
type Option func(*CirculationService)

// WithClock replaces time.Now. Tests use it to move time.
func WithClock(clock func() time.Time) Option {
	return func(s *CirculationService) {
		s.clock = clock
	}
}

// WithOverrideNotifier registers a receiver for force-close, force-delete
// and resize events.
func WithOverrideNotifier(n OverrideNotifier) Option {
	return func(s *CirculationService) {
		s.notifier = n
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *CirculationService) {
		s.tracer = t
	}
}

func NewService(
	st store.Store,
	ledger repository.LedgerRepository,
	loans repository.LoanRepository,
	queries repository.QueryRepository,
	engine *policy.Engine,
	opts ...Option,
) *CirculationService {
	s := &CirculationService{
		store:   st,
		ledger:  ledger,
		loans:   loans,
		queries: queries,
		policy:  engine,
		tracer:  otel.Tracer(tracerName),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ServiceInterface = (*CirculationService)(nil)

// now is UTC at microsecond precision, the resolution both backends store.
func (s *CirculationService) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

// =====================================================
// LOAN LIFECYCLE
// =====================================================

func (s *CirculationService) Borrow(ctx context.Context, req model.BorrowRequest) (_ *model.Loan, err error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewInvalidInputError(err)
	}
	borrowerID, _ := uuid.Parse(req.BorrowerID)
	itemID, _ := uuid.Parse(req.ItemID)

	ctx, span := s.tracer.Start(ctx, "circulation.Borrow", trace.WithAttributes(
		attribute.String("borrower.id", borrowerID.String()),
		attribute.String("item.id", itemID.String()),
	))
	defer func() { endSpan(span, err) }()

	limit, err := s.policy.BorrowLimit(ctx, borrowerID, itemID)
	if err != nil {
		logDenialOrFault(err, "Borrow refused", itemID, nil)
		return nil, err
	}

	now := s.now()
	loan := &model.Loan{
		ID:         uuid.New(),
		BorrowerID: borrowerID,
		ItemID:     itemID,
		OpenedAt:   now,
		DueAt:      now.Add(s.policy.LoanPeriod(req.LoanPeriodDays)),
		FineAmount: decimal.Zero,
	}

	err = s.store.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		// Recount under a per-borrower lock: concurrent borrows by one borrower
		// may all have passed the unlocked check above.
		if err := store.LockXact(ctx, q, s.store.Driver(), "borrower:"+borrowerID.String()); err != nil {
			return err
		}
		open, err := s.loans.CountOpenByBorrower(ctx, q, borrowerID)
		if err != nil {
			return err
		}
		if err := policy.CheckLoanLimit(borrowerID, open, limit); err != nil {
			return err
		}

		if err := s.ledger.TryAcquireCopy(ctx, q, itemID, now); err != nil {
			return err
		}
		return s.loans.Open(ctx, q, loan)
	})
	if err != nil {
		logDenialOrFault(err, "Borrow refused", itemID, nil)
		return nil, err
	}

	log.Info().
		Str("loan_id", loan.ID.String()).
		Str("borrower_id", borrowerID.String()).
		Str("item_id", itemID.String()).
		Time("due_at", loan.DueAt).
		Msg("[CIRCULATION] Loan opened")
	return loan, nil
}

func (s *CirculationService) Return(ctx context.Context, loanID uuid.UUID, req model.ReturnRequest) (_ *model.Loan, err error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewInvalidInputError(err)
	}
	perDay, err := s.policy.FinePerDay(req.FinePerDay)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "circulation.Return", trace.WithAttributes(
		attribute.String("loan.id", loanID.String()),
	))
	defer func() { endSpan(span, err) }()

	now := s.now()
	closed, err := s.closeAndRelease(ctx, loanID, now, model.CloseReasonReturned, func(loan *model.Loan) decimal.Decimal {
		return policy.Fine(loan, now, perDay)
	})
	if err != nil {
		logDenialOrFault(err, "Return refused", uuid.Nil, &loanID)
		return nil, err
	}

	log.Info().
		Str("loan_id", loanID.String()).
		Str("item_id", closed.ItemID.String()).
		Str("fine", closed.FineAmount.StringFixed(2)).
		Msg("[CIRCULATION] Loan returned")
	return closed, nil
}

func (s *CirculationService) ForceClose(ctx context.Context, loanID uuid.UUID) (_ *model.Loan, err error) {
	ctx, span := s.tracer.Start(ctx, "circulation.ForceClose", trace.WithAttributes(
		attribute.String("loan.id", loanID.String()),
	))
	defer func() { endSpan(span, err) }()

	now := s.now()
	closed, err := s.closeAndRelease(ctx, loanID, now, model.CloseReasonForceClosed, func(*model.Loan) decimal.Decimal {
		return decimal.Zero
	})
	if err != nil {
		logDenialOrFault(err, "Force close refused", uuid.Nil, &loanID)
		return nil, err
	}

	log.Warn().
		Str("loan_id", loanID.String()).
		Str("item_id", closed.ItemID.String()).
		Msg("[CIRCULATION] Loan force-closed")
	s.notifyOverride(ctx, OverrideEvent{Kind: OverrideForceClose, ItemID: closed.ItemID, LoanID: &loanID, At: now})
	return closed, nil
}

// closeAndRelease closes an open loan and returns its copy in one
// transaction. Only the caller whose close matched the open row releases, so
// of racing closers exactly one increments the counter.
func (s *CirculationService) closeAndRelease(
	ctx context.Context,
	loanID uuid.UUID,
	now time.Time,
	reason model.CloseReason,
	fineFor func(*model.Loan) decimal.Decimal,
) (*model.Loan, error) {
	var closed *model.Loan

	err := s.store.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		loan, err := s.loans.GetByID(ctx, q, loanID)
		if err != nil {
			return err
		}
		if !loan.IsOpen() {
			return model.Deny(model.ReasonAlreadyClosed, "loan %s is already closed", loanID)
		}

		fine := fineFor(loan)
		won, err := s.loans.Close(ctx, q, loanID, now, fine, reason)
		if err != nil {
			return err
		}
		if !won {
			return model.Deny(model.ReasonAlreadyClosed, "loan %s is already closed", loanID)
		}

		if err := s.ledger.ReleaseCopy(ctx, q, loan.ItemID, now); err != nil {
			return err
		}

		loan.ReturnedAt = &now
		loan.FineAmount = fine
		loan.CloseReason = &reason
		closed = loan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *CirculationService) Renew(ctx context.Context, loanID uuid.UUID, req model.RenewRequest) (_ *model.Loan, err error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewInvalidInputError(err)
	}
	extension := s.policy.RenewalExtension(req.ExtensionDays)

	ctx, span := s.tracer.Start(ctx, "circulation.Renew", trace.WithAttributes(
		attribute.String("loan.id", loanID.String()),
	))
	defer func() { endSpan(span, err) }()

	var renewed *model.Loan
	err = retry.WithExponentialBackoff(ctx, func(ctx context.Context) error {
		loan, err := s.loans.GetByID(ctx, s.store, loanID)
		if err != nil {
			return err
		}
		if err := s.policy.CheckRenewal(loan, s.now()); err != nil {
			return err
		}

		newDue := loan.DueAt.Add(extension)
		ok, err := s.loans.Renew(ctx, s.store, loanID, loan.RenewalCount, newDue)
		if err != nil {
			return err
		}
		if !ok {
			return model.NewConcurrentModificationError(loanID)
		}

		loan.DueAt = newDue
		loan.RenewalCount++
		renewed = loan
		return nil
	}, retry.If(model.IsConcurrentModification))
	if err != nil {
		logDenialOrFault(err, "Renew refused", uuid.Nil, &loanID)
		return nil, err
	}

	log.Info().
		Str("loan_id", loanID.String()).
		Int("renewal_count", renewed.RenewalCount).
		Time("due_at", renewed.DueAt).
		Msg("[CIRCULATION] Loan renewed")
	return renewed, nil
}

// DeleteLoan removes the record. A closed loan goes without touching the
// ledger. An open loan needs force and hands its copy back in the same
// transaction; if a return wins the race in between, the attempt is retried
// against the now-closed loan.
func (s *CirculationService) DeleteLoan(ctx context.Context, loanID uuid.UUID, force bool) (err error) {
	ctx, span := s.tracer.Start(ctx, "circulation.DeleteLoan", trace.WithAttributes(
		attribute.String("loan.id", loanID.String()),
		attribute.Bool("force", force),
	))
	defer func() { endSpan(span, err) }()

	var (
		itemID   uuid.UUID
		released bool
	)
	now := s.now()

	err = retry.WithExponentialBackoff(ctx, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(ctx context.Context, q store.Querier) error {
			loan, err := s.loans.GetByID(ctx, q, loanID)
			if err != nil {
				return err
			}
			itemID = loan.ItemID

			if !loan.IsOpen() {
				ok, err := s.loans.Delete(ctx, q, loanID, false)
				if err != nil {
					return err
				}
				if !ok {
					return model.NewLoanNotFoundError(loanID)
				}
				released = false
				return nil
			}

			if !force {
				return model.Deny(model.ReasonLoanStillOpen, "loan %s is open, delete needs force", loanID)
			}

			ok, err := s.loans.Delete(ctx, q, loanID, true)
			if err != nil {
				return err
			}
			if !ok {
				return model.NewConcurrentModificationError(loanID)
			}
			released = true
			return s.ledger.ReleaseCopy(ctx, q, loan.ItemID, now)
		})
	}, retry.If(model.IsConcurrentModification))
	if err != nil {
		logDenialOrFault(err, "Delete refused", uuid.Nil, &loanID)
		return err
	}

	log.Info().
		Str("loan_id", loanID.String()).
		Str("item_id", itemID.String()).
		Bool("released_copy", released).
		Msg("[CIRCULATION] Loan deleted")

	if released {
		s.notifyOverride(ctx, OverrideEvent{Kind: OverrideForceDelete, ItemID: itemID, LoanID: &loanID, At: now})
	}
	return nil
}

func (s *CirculationService) CheckBorrowEligible(ctx context.Context, borrowerID, itemID uuid.UUID) error {
	return s.policy.CheckBorrowEligible(ctx, borrowerID, itemID)
}

// =====================================================
// HELPERS
// =====================================================

func (s *CirculationService) notifyOverride(ctx context.Context, event OverrideEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyOverride(ctx, event); err != nil {
		log.Warn().
			Err(err).
			Str("kind", string(event.Kind)).
			Str("item_id", event.ItemID.String()).
			Msg("[CIRCULATION] Override notification failed")
	}
}

// endSpan records faults as span errors. Denials are expected outcomes and
// only get tagged with their reason.
func endSpan(span trace.Span, err error) {
	if err != nil {
		if d, ok := model.AsDenial(err); ok {
			span.SetAttributes(attribute.String("circulation.denial", string(d.Reason)))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func logDenialOrFault(err error, msg string, itemID uuid.UUID, loanID *uuid.UUID) {
	level := zerolog.ErrorLevel
	d, denied := model.AsDenial(err)
	switch {
	case denied:
		level = zerolog.InfoLevel
	case errors.Is(err, model.ErrInvalidInput), model.IsNotFoundError(err):
		level = zerolog.WarnLevel
	}

	event := log.WithLevel(level).Err(err)
	if denied {
		event = event.Str("reason", string(d.Reason))
	}
	if itemID != uuid.Nil {
		event = event.Str("item_id", itemID.String())
	}
	if loanID != nil {
		event = event.Str("loan_id", loanID.String())
	}
	event.Msg("[CIRCULATION] " + msg)
}
