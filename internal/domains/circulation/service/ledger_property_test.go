package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"circulation-backend/internal/domains/circulation/model"
)

// Random sequences of borrow, return, force-close, delete and resize must
// keep every counter in [0, total] and equal to total minus open loans.
func TestLedgerConservation_Property(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	borrowers := make([]uuid.UUID, 4)
	for i := range borrowers {
		borrowers[i] = f.addBorrower(t, 50)
	}

	rapid.Check(t, func(rt *rapid.T) {
		total := rapid.IntRange(1, 4).Draw(rt, "copies")
		item, err := f.svc.RegisterItem(ctx, model.RegisterItemRequest{CopiesTotal: total})
		require.NoError(rt, err)
		itemID := item.ID

		var open []uuid.UUID

		check := func() {
			a, err := f.svc.GetAvailability(ctx, itemID)
			require.NoError(rt, err)
			if a.CopiesAvailable < 0 || a.CopiesAvailable > a.CopiesTotal {
				rt.Fatalf("available %d outside [0, %d]", a.CopiesAvailable, a.CopiesTotal)
			}
			if a.CopiesAvailable != a.CopiesTotal-a.OpenLoanCount {
				rt.Fatalf("available %d != total %d - open %d", a.CopiesAvailable, a.CopiesTotal, a.OpenLoanCount)
			}
			if a.OpenLoanCount != len(open) {
				rt.Fatalf("open loans %d, tracked %d", a.OpenLoanCount, len(open))
			}
		}

		pickOpen := func(label string) (int, bool) {
			if len(open) == 0 {
				return 0, false
			}
			return rapid.IntRange(0, len(open)-1).Draw(rt, label), true
		}
		drop := func(i int) {
			open = append(open[:i], open[i+1:]...)
		}

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for s := 0; s < steps; s++ {
			switch rapid.IntRange(0, 4).Draw(rt, "op") {
			case 0:
				b := borrowers[rapid.IntRange(0, len(borrowers)-1).Draw(rt, "borrower")]
				loan, err := f.borrow(b, itemID)
				if err != nil {
					if !model.IsDenied(err, model.ReasonNoCopiesAvailable) {
						rt.Fatalf("borrow: %v", err)
					}
					break
				}
				open = append(open, loan.ID)

			case 1:
				i, ok := pickOpen("return")
				if !ok {
					break
				}
				_, err := f.svc.Return(ctx, open[i], model.ReturnRequest{})
				require.NoError(rt, err)
				closed := open[i]
				drop(i)
				_, err = f.svc.Return(ctx, closed, model.ReturnRequest{})
				if !model.IsDenied(err, model.ReasonAlreadyClosed) {
					rt.Fatalf("second return: %v", err)
				}

			case 2:
				i, ok := pickOpen("force_close")
				if !ok {
					break
				}
				_, err := f.svc.ForceClose(ctx, open[i])
				require.NoError(rt, err)
				drop(i)

			case 3:
				i, ok := pickOpen("delete")
				if !ok {
					break
				}
				require.NoError(rt, f.svc.DeleteLoan(ctx, open[i], true))
				drop(i)

			case 4:
				newTotal := rapid.IntRange(1, 6).Draw(rt, "new_total")
				_, err := f.svc.ResizeItem(ctx, itemID, model.ResizeItemRequest{CopiesTotal: newTotal})
				if err != nil {
					if newTotal >= len(open) || !model.IsDenied(err, model.ReasonResizeBelowOutstanding) {
						rt.Fatalf("resize to %d with %d open: %v", newTotal, len(open), err)
					}
				}
			}
			check()
		}
	})

	result, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Empty(t, result.Violations)
}
