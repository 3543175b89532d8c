package job_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circulation-backend/internal/domains/circulation/job"
	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/domains/circulation/service"
	"circulation-backend/internal/shared"
)

type fakeService struct {
	service.ServiceInterface
	refreshCalls   int
	reconcileCalls int
	err            error
}

func (f *fakeService) RefreshOverdueFines(context.Context) (int, error) {
	f.refreshCalls++
	return 3, f.err
}

func (f *fakeService) Reconcile(context.Context) (*model.ReconcileResponse, error) {
	f.reconcileCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.ReconcileResponse{Violations: []model.ConservationViolation{{ItemID: uuid.New()}}}, nil
}

func TestRefreshFinesHandler(t *testing.T) {
	svc := &fakeService{}
	h := job.NewRefreshFinesHandler(svc)

	require.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeRefreshOverdueFines, nil)))
	assert.Equal(t, 1, svc.refreshCalls)

	err := h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeRefreshOverdueFines, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, 1, svc.refreshCalls)

	svc.err = errors.New("database is down")
	err = h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeRefreshOverdueFines, nil))
	assert.ErrorIs(t, err, svc.err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestReconcileHandler_ViolationsAreNotFailures(t *testing.T) {
	svc := &fakeService{}
	h := job.NewReconcileHandler(svc)

	payload, err := json.Marshal(shared.ReconcileLedgerPayload{Trigger: "schedule", At: time.Now()})
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeReconcileLedger, payload)))
	assert.Equal(t, 1, svc.reconcileCalls)

	err = h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeReconcileLedger, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type()}, nil
}

func TestReconcileNotifier(t *testing.T) {
	enq := &fakeEnqueuer{}
	n := job.NewReconcileNotifier(enq)
	itemID, loanID := uuid.New(), uuid.New()
	at := time.Date(2025, time.May, 5, 10, 0, 0, 0, time.UTC)

	require.NoError(t, n.NotifyOverride(context.Background(), service.OverrideEvent{
		Kind:   service.OverrideForceClose,
		ItemID: itemID,
		LoanID: &loanID,
		At:     at,
	}))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, shared.TypeReconcileLedger, enq.tasks[0].Type())

	var payload shared.ReconcileLedgerPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, "force_close", payload.Trigger)
	assert.Equal(t, itemID.String(), payload.ItemID)
	assert.Equal(t, loanID.String(), payload.LoanID)
	assert.True(t, at.Equal(payload.At))

	enq.err = asynq.ErrDuplicateTask
	assert.NoError(t, n.NotifyOverride(context.Background(), service.OverrideEvent{Kind: service.OverrideResize, ItemID: itemID, At: at}))

	enq.err = errors.New("redis: connection refused")
	assert.Error(t, n.NotifyOverride(context.Background(), service.OverrideEvent{Kind: service.OverrideResize, ItemID: itemID, At: at}))
}
