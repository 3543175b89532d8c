package main

import (
	"github.com/hibiken/asynq"

	circulationJob "circulation-backend/internal/domains/circulation/job"
	"circulation-backend/internal/shared"
	"circulation-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	refreshFines *circulationJob.RefreshFinesHandler
	reconcile    *circulationJob.ReconcileHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		refreshFines: circulationJob.NewRefreshFinesHandler(c.CirculationService),
		reconcile:    circulationJob.NewReconcileHandler(c.CirculationService),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypeRefreshOverdueFines, h.refreshFines.ProcessTask)
	mux.HandleFunc(shared.TypeReconcileLedger, h.reconcile.ProcessTask)
}
