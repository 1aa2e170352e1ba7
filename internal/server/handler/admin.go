package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/scheduler"
)

// ArchiveBrowser lists cold-storage archive objects. It is declared locally
// so the handler package does not depend on the blob implementation.
type ArchiveBrowser interface {
	List(ctx context.Context, prefix string) ([]domain.BlobInfo, error)
}

// AdminHandler serves operational endpoints guarded by the admin key.
type AdminHandler struct {
	scheduler *scheduler.Controller
	archives  ArchiveBrowser // nil when cold storage is disabled
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(sched *scheduler.Controller, archives ArchiveBrowser, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		scheduler: sched,
		archives:  archives,
		logger:    logger,
	}
}

// SchedulerStatus reports the state of every periodic task.
// GET /api/admin/scheduler
func (h *AdminHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running":    h.scheduler.Running(),
		"started_at": h.scheduler.StartedAt().UTC().Format(time.RFC3339),
		"tasks":      h.scheduler.Status(),
	})
}

// TriggerTask forces an out-of-band run of one scheduled task.
// POST /api/admin/scheduler/trigger/{name}
func (h *AdminHandler) TriggerTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing task name")
		return
	}

	if err := h.scheduler.Trigger(name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.InfoContext(r.Context(), "handler: task triggered",
		slog.String("task", name),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"triggered": name})
}

// ListArchives lists the ledger archive objects in cold storage.
// GET /api/admin/archives
func (h *AdminHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeError(w, http.StatusNotImplemented, "cold storage is disabled")
		return
	}

	infos, err := h.archives.List(r.Context(), "archive/ledger/")
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": infos})
}
