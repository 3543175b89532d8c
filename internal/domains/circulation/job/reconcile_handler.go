package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"circulation-backend/internal/domains/circulation/service"
	"circulation-backend/internal/shared"
	"circulation-backend/pkg/logger"
)

// ReconcileHandler runs the conservation check. Violations are reported, not
// treated as task failures: retrying would find the same rows.
type ReconcileHandler struct {
	service service.ServiceInterface
}

func NewReconcileHandler(svc service.ServiceInterface) *ReconcileHandler {
	return &ReconcileHandler{service: svc}
}

func (h *ReconcileHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.ReconcileLedgerPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Error("Reconcile: Failed to unmarshal payload", err)
			return fmt.Errorf("unmarshal ReconcileLedger payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	result, err := h.service.Reconcile(ctx)
	if err != nil {
		logger.Error("Reconcile: check failed", err)
		return err
	}

	logger.Info("Reconcile: done", map[string]interface{}{
		"trigger":    payload.Trigger,
		"item_id":    payload.ItemID,
		"violations": len(result.Violations),
	})
	return nil
}
