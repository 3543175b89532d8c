package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"circulation-backend/internal/domains/circulation/service"
	"circulation-backend/internal/shared"
)

// reconcileDedupWindow collapses bursts of overrides into one reconcile run.
const reconcileDedupWindow = time.Minute

// TaskEnqueuer is the part of *asynq.Client the notifier uses.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReconcileNotifier enqueues a ledger reconcile after every administrative
// override.
type ReconcileNotifier struct {
	client TaskEnqueuer
}

func NewReconcileNotifier(client TaskEnqueuer) *ReconcileNotifier {
	return &ReconcileNotifier{client: client}
}

var _ service.OverrideNotifier = (*ReconcileNotifier)(nil)

func (n *ReconcileNotifier) NotifyOverride(ctx context.Context, event service.OverrideEvent) error {
	payload := shared.ReconcileLedgerPayload{
		Trigger: string(event.Kind),
		ItemID:  event.ItemID.String(),
		At:      event.At,
	}
	if event.LoanID != nil {
		payload.LoanID = event.LoanID.String()
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal reconcile payload: %w", err)
	}

	_, err = n.client.EnqueueContext(ctx,
		asynq.NewTask(shared.TypeReconcileLedger, raw),
		asynq.Queue(shared.QueueMaintenance),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Unique(reconcileDedupWindow),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue reconcile: %w", err)
	}
	return nil
}
