package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"circulation-backend/internal/config"
	"circulation-backend/internal/shared"
	"circulation-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobsConfig
}

func NewScheduler(redis asynq.RedisConnOpt, jobConfig config.JobsConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		redis,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

// RegisterCirculationJobs registers every periodic circulation job.
// An empty cron expression disables the job.
func (s *Scheduler) RegisterCirculationJobs() error {
	if err := s.registerRefreshOverdueFinesJob(); err != nil {
		return err
	}

	if err := s.registerReconcileLedgerJob(); err != nil {
		return err
	}

	return nil
}

// ================================================
// JOB 1: Refresh Overdue Fines (hourly by default)
// ================================================
func (s *Scheduler) registerRefreshOverdueFinesJob() error {
	if s.jobConfig.RefreshFinesCron == "" {
		logger.Info("RefreshOverdueFines disabled", map[string]interface{}{})
		return nil
	}

	payload, err := json.Marshal(shared.RefreshOverdueFinesPayload{})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeRefreshOverdueFines, payload)

	_, err = s.scheduler.Register(
		s.jobConfig.RefreshFinesCron,
		task,
		asynq.Queue(shared.QueueCirculation),
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
	)

	if err != nil {
		logger.Error("Failed to register RefreshOverdueFines job", err)
		return err
	}

	logger.Info("✓ Registered RefreshOverdueFines", map[string]interface{}{"cron": s.jobConfig.RefreshFinesCron})
	return nil
}

// ================================================
// JOB 2: Reconcile Ledger (every 30 minutes by default)
// ================================================
func (s *Scheduler) registerReconcileLedgerJob() error {
	if s.jobConfig.ReconcileCron == "" {
		logger.Info("ReconcileLedger disabled", map[string]interface{}{})
		return nil
	}

	payload, err := json.Marshal(shared.ReconcileLedgerPayload{Trigger: "schedule"})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeReconcileLedger, payload)

	_, err = s.scheduler.Register(
		s.jobConfig.ReconcileCron,
		task,
		asynq.Queue(shared.QueueMaintenance),
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
	)

	if err != nil {
		logger.Error("Failed to register ReconcileLedger job", err)
		return err
	}

	logger.Info("✓ Registered ReconcileLedger", map[string]interface{}{"cron": s.jobConfig.ReconcileCron})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
