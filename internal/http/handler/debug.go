package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"taskmanager/internal/mailer"
	"taskmanager/internal/reminder"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Waker triggers an immediate scheduler pass.
type Waker interface {
	Wake()
}

// DebugHandler serves the operator endpoints for inspecting and recovering reminder jobs.
type DebugHandler struct {
	Reminders *reminder.Service
	Scheduler Waker
	Tasks     reminder.TaskStore
	Sender    mailer.Sender
	From      string
	// DefaultTo receives test emails sent without an explicit recipient.
	DefaultTo string
	Logger    *slog.Logger
}

func (h *DebugHandler) internal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.Logger.ErrorContext(r.Context(), msg, slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": err.Error()})
}

func (h *DebugHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Reminders.ListJobs(r.Context())
	if err != nil {
		h.internal(w, r, "failed to list jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobs": jobs})
}

func (h *DebugHandler) FailedJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Reminders.ListFailed(r.Context())
	if err != nil {
		h.internal(w, r, "failed to list failed jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "failedCount": len(jobs), "failed": jobs})
}

type rescheduleReq struct {
	TaskID string  `json:"taskId"`
	When   *string `json:"when"`
}

func (h *DebugHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "bad json"})
		return
	}
	req.TaskID = strings.TrimSpace(req.TaskID)
	if req.TaskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "taskId required"})
		return
	}
	if err := uuid.Validate(req.TaskID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "Task id not valid"})
		return
	}

	var when *time.Time
	if req.When != nil && strings.TrimSpace(*req.When) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.When))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "invalid when (RFC3339)"})
			return
		}
		when = &t
	}

	at, err := h.Reminders.Reschedule(r.Context(), req.TaskID, when)
	if err != nil {
		h.internal(w, r, "failed to reschedule job", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "taskId": req.TaskID, "nextRunAt": at})
}

func (h *DebugHandler) RescheduleFailed(w http.ResponseWriter, r *http.Request) {
	out, err := h.Reminders.RescheduleFailed(r.Context())
	if err != nil {
		h.internal(w, r, "failed to reschedule failed jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "rescheduled": out, "count": len(out)})
}

func (h *DebugHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	h.Scheduler.Wake()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (h *DebugHandler) Task(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := uuid.Validate(id); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "Task id not valid"})
		return
	}
	t, err := h.Tasks.FindForReminder(r.Context(), id)
	if errors.Is(err, reminder.ErrTaskNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "message": "Task not found"})
		return
	}
	if err != nil {
		h.internal(w, r, "debug task fetch error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "task": t})
}

type testEmailReq struct {
	To string `json:"to"`
}

func (h *DebugHandler) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	var req testEmailReq
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "bad json"})
			return
		}
	}
	to := strings.TrimSpace(req.To)
	if to == "" {
		to = h.DefaultTo
	}
	if to == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "No recipient configured for test email"})
		return
	}

	ctx := r.Context()
	if v, ok := h.Sender.(mailer.Verifier); ok {
		if err := v.Verify(ctx); err != nil {
			h.internal(w, r, "failed to send test email", fmt.Errorf("transport verification failed: %w", err))
			return
		}
	}

	d, err := h.Sender.Send(ctx, testEmail(h.From, to))
	if err != nil {
		h.internal(w, r, "failed to send test email", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "info": d})
}

func testEmail(from, to string) *mailer.Message {
	return &mailer.Message{
		From:    from,
		To:      to,
		Subject: "Test Email from Task Manager",
		Text:    "This is a test email sent at " + time.Now().UTC().Format(time.RFC3339),
	}
}
