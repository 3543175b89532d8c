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

// RefreshFinesHandler persists accrued fines on overdue loans so statistics
// report outstanding fines without recomputing them.
type RefreshFinesHandler struct {
	service service.ServiceInterface
}

func NewRefreshFinesHandler(svc service.ServiceInterface) *RefreshFinesHandler {
	return &RefreshFinesHandler{service: svc}
}

func (h *RefreshFinesHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.RefreshOverdueFinesPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Error("RefreshFines: Failed to unmarshal payload", err)
			// Malformed payload will not get better on retry
			return fmt.Errorf("unmarshal RefreshOverdueFines payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	updated, err := h.service.RefreshOverdueFines(ctx)
	if err != nil {
		logger.Error("RefreshFines: refresh failed", err)
		return err
	}

	logger.Info("RefreshFines: done", map[string]interface{}{
		"updated":      updated,
		"requested_at": payload.RequestedAt,
	})
	return nil
}
