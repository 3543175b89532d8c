package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/domains/circulation/repository"
	"circulation-backend/internal/infrastructure/store"
)

func (s *CirculationService) RegisterItem(ctx context.Context, req model.RegisterItemRequest) (*model.Item, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewInvalidInputError(err)
	}

	id := uuid.New()
	if req.ItemID != "" {
		id, _ = uuid.Parse(req.ItemID)
	}

	now := s.now()
	item := &model.Item{
		ID:              id,
		CopiesTotal:     req.CopiesTotal,
		CopiesAvailable: req.CopiesTotal,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.ledger.RegisterItem(ctx, s.store, item); err != nil {
		return nil, err
	}

	log.Info().
		Str("item_id", id.String()).
		Int("copies_total", item.CopiesTotal).
		Msg("[LEDGER] Item registered")
	return item, nil
}

// ResizeItem changes copies_total and shifts copies_available by the same
// delta, so copies on loan stay accounted for.
func (s *CirculationService) ResizeItem(ctx context.Context, itemID uuid.UUID, req model.ResizeItemRequest) (_ *model.Item, err error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewInvalidInputError(err)
	}

	ctx, span := s.tracer.Start(ctx, "circulation.ResizeItem", trace.WithAttributes(
		attribute.String("item.id", itemID.String()),
		attribute.Int("copies_total", req.CopiesTotal),
	))
	defer func() { endSpan(span, err) }()

	now := s.now()
	var item *model.Item
	err = s.store.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		item, err = s.ledger.Resize(ctx, q, itemID, req.CopiesTotal, now)
		return err
	})
	if err != nil {
		logDenialOrFault(err, "Resize refused", itemID, nil)
		return nil, err
	}

	log.Info().
		Str("item_id", itemID.String()).
		Int("copies_total", item.CopiesTotal).
		Int("copies_available", item.CopiesAvailable).
		Msg("[LEDGER] Item resized")
	s.notifyOverride(ctx, OverrideEvent{Kind: OverrideResize, ItemID: itemID, At: now})
	return item, nil
}

func (s *CirculationService) GetItem(ctx context.Context, itemID uuid.UUID) (*model.Item, error) {
	return s.ledger.GetItem(ctx, s.store, itemID)
}

func (s *CirculationService) ListItems(ctx context.Context, page, limit int) ([]model.Item, error) {
	page, limit = normalizePage(page, limit)
	return s.ledger.ListItems(ctx, s.store, limit, (page-1)*limit)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// Catalog adapts the ledger and loan repositories to the policy engine's
// lookups, reading outside any transaction.
type Catalog struct {
	store  store.Store
	ledger repository.LedgerRepository
	loans  repository.LoanRepository
}

func NewCatalog(st store.Store, ledger repository.LedgerRepository, loans repository.LoanRepository) *Catalog {
	return &Catalog{store: st, ledger: ledger, loans: loans}
}

func (c *Catalog) GetItem(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	return c.ledger.GetItem(ctx, c.store, id)
}

func (c *Catalog) CountOpenByBorrower(ctx context.Context, borrowerID uuid.UUID) (int, error) {
	return c.loans.CountOpenByBorrower(ctx, c.store, borrowerID)
}
