package handlers

import (
	"context"
	"net/http"
	"strconv"

	"inventory/application/migration"
	"inventory/pkg/common"
	pkgerrors "inventory/pkg/errors"

	"go.uber.org/zap"
)

// Migrator runs the view id migration
type Migrator interface {
	Run(ctx context.Context, opts migration.Options) (*migration.Report, error)
	Running() bool
}

// MigrationHandler exposes the view id migration to operators
type MigrationHandler struct {
	migrator Migrator
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewMigrationHandler creates a new migration handler
func NewMigrationHandler(migrator Migrator, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *MigrationHandler {
	return &MigrationHandler{
		migrator: migrator,
		errors:   errorHandler,
		logger:   logger,
	}
}

// Run handles POST /admin/migrations/view-ids?dryRun=true
func (h *MigrationHandler) Run(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dryRun"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("dryRun must be a boolean"))
			return
		}
		dryRun = parsed
	}

	report, err := h.migrator.Run(r.Context(), migration.Options{DryRun: dryRun})
	if err != nil {
		if report != nil {
			h.logger.Error("View id migration failed", zap.Any("stages", report.Stages), zap.Error(err))
		}
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, report)
}

// Status handles GET /admin/migrations/view-ids
func (h *MigrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, r, http.StatusOK, map[string]bool{"running": h.migrator.Running()})
}
