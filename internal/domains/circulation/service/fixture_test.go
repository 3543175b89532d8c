package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"circulation-backend/internal/config"
	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/domains/circulation/policy"
	"circulation-backend/internal/domains/circulation/repository"
	"circulation-backend/internal/domains/circulation/service"
	"circulation-backend/internal/domains/directory"
	"circulation-backend/internal/infrastructure/store"
	"circulation-backend/internal/testutil"
)

var epoch = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []service.OverrideEvent
}

func (n *recordingNotifier) NotifyOverride(_ context.Context, event service.OverrideEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) Kinds() []service.OverrideKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]service.OverrideKind, 0, len(n.events))
	for _, e := range n.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type fixture struct {
	svc       *service.CirculationService
	store     store.Store
	ledger    repository.LedgerRepository
	clock     *testClock
	borrowers *directory.StaticRegistry
	notifier  *recordingNotifier
}

// fixtureOptions swap collaborators to simulate failures and races.
type fixtureOptions struct {
	// wrapLoans wraps the loan repository the service writes through.
	wrapLoans func(repository.LoanRepository) repository.LoanRepository
	// counter replaces the open-loan counter the policy engine reads.
	counter policy.OpenLoanCounter
}

func newFixture(t testing.TB) *fixture {
	return newFixtureWith(t, fixtureOptions{})
}

func newFixtureWith(t testing.TB, opts fixtureOptions) *fixture {
	t.Helper()

	st := testutil.NewSQLiteStore(t)
	ledger := repository.NewLedgerRepository(st.Dialect())
	loans := repository.NewLoanRepository(st.Dialect())
	queries := repository.NewQueryRepository(st.Dialect())

	f := &fixture{
		store:     st,
		ledger:    ledger,
		clock:     &testClock{now: epoch},
		borrowers: directory.NewStaticRegistry(),
		notifier:  &recordingNotifier{},
	}

	catalog := service.NewCatalog(st, ledger, loans)
	var counter policy.OpenLoanCounter = catalog
	if opts.counter != nil {
		counter = opts.counter
	}
	engine := policy.NewEngine(config.DefaultCirculation(), f.borrowers, catalog, counter)

	serviceLoans := loans
	if opts.wrapLoans != nil {
		serviceLoans = opts.wrapLoans(loans)
	}

	f.svc = service.NewService(st, ledger, serviceLoans, queries, engine,
		service.WithClock(f.clock.Now),
		service.WithOverrideNotifier(f.notifier),
	)
	return f
}

func (f *fixture) addBorrower(t testing.TB, maxLoans int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, f.borrowers.UpsertBorrower(context.Background(), &directory.Borrower{
		ID:                 id,
		DisplayName:        "patron " + id.String()[:8],
		MaxConcurrentLoans: maxLoans,
	}))
	return id
}

func (f *fixture) addItem(t testing.TB, copies int) uuid.UUID {
	t.Helper()
	item, err := f.svc.RegisterItem(context.Background(), model.RegisterItemRequest{CopiesTotal: copies})
	require.NoError(t, err)
	return item.ID
}

func (f *fixture) borrow(borrowerID, itemID uuid.UUID) (*model.Loan, error) {
	return f.svc.Borrow(context.Background(), model.BorrowRequest{
		BorrowerID: borrowerID.String(),
		ItemID:     itemID.String(),
	})
}

func (f *fixture) availability(t testing.TB, itemID uuid.UUID) *model.Availability {
	t.Helper()
	a, err := f.svc.GetAvailability(context.Background(), itemID)
	require.NoError(t, err)
	return a
}
