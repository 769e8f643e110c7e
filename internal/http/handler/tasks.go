package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"taskmanager/internal/auth"
	"taskmanager/internal/task"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type TaskHandler struct {
	Svc    *task.Service
	Logger *slog.Logger
}

type taskReq struct {
	Description string  `json:"description"`
	ReminderAt  *string `json:"reminderAt"` // RFC3339, empty or null clears it
}

func (req taskReq) input() (task.Input, error) {
	in := task.Input{Description: req.Description}
	if req.ReminderAt != nil && strings.TrimSpace(*req.ReminderAt) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.ReminderAt))
		if err != nil {
			return in, err
		}
		in.ReminderAt = &t
	}
	return in, nil
}

// taskID reads and validates the {id} URL parameter.
func taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := uuid.Validate(id); err != nil {
		writeErr(w, http.StatusBadRequest, "Task id not valid")
		return "", false
	}
	return id, true
}

func decodeTask(w http.ResponseWriter, r *http.Request) (task.Input, bool) {
	var req taskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return task.Input{}, false
	}
	in, err := req.input()
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid reminderAt (RFC3339)")
		return task.Input{}, false
	}
	return in, true
}

func (h *TaskHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, task.ErrInvalidInput):
		writeErr(w, http.StatusBadRequest, "Description of task not found")
	case errors.Is(err, task.ErrNotFound):
		writeErr(w, http.StatusNotFound, "No task found..")
	case errors.Is(err, task.ErrForbidden):
		writeErr(w, http.StatusForbidden, "You can't modify task of another user")
	default:
		h.Logger.ErrorContext(r.Context(), "task request failed", slog.String("error", err.Error()))
		writeErr(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	tasks, err := h.Svc.List(r.Context(), uid, r.URL.Query().Get("tag"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "status": true, "msg": "Tasks found successfully.."})
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	t, err := h.Svc.Get(r.Context(), uid, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": t, "status": true, "msg": "Task found successfully.."})
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	in, ok := decodeTask(w, r)
	if !ok {
		return
	}
	t, err := h.Svc.Create(r.Context(), uid, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": t, "status": true, "msg": "Task created successfully.."})
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	in, ok := decodeTask(w, r)
	if !ok {
		return
	}
	t, err := h.Svc.Update(r.Context(), uid, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": t, "status": true, "msg": "Task updated successfully.."})
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), uid, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "msg": "Task deleted successfully.."})
}
