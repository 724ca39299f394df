package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"farm-advisor/internal/services"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// FarmHandler handles the farm diary and task planner endpoints. Every
// route requires a logged-in user.
type FarmHandler struct {
	responder
	farm *services.FarmService
}

// NewFarmHandler creates a new farm handler
func NewFarmHandler(farm *services.FarmService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *FarmHandler {
	return &FarmHandler{
		responder: responder{logger: logger, metrics: metricsCollector},
		farm:      farm,
	}
}

// ListDiary handles GET /api/diary
func (h *FarmHandler) ListDiary(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	limit, offset, err := pageParams(r)
	if err != nil {
		h.sendServiceError(w, r, "[API_DIARY_ERROR]", err)
		return
	}

	entries, err := h.farm.ListDiary(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.sendServiceError(w, r, "[API_DIARY_ERROR]", err)
		return
	}

	h.sendJSON(w, entries, http.StatusOK)
}

// AddDiaryEntry handles POST /api/diary
func (h *FarmHandler) AddDiaryEntry(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	in := services.DiaryInput{
		EntryType: r.PostFormValue("entry_type"),
		Date:      r.PostFormValue("date"),
		Crop:      r.PostFormValue("crop"),
		Details:   r.PostFormValue("details"),
	}
	if r.PostFormValue("amount") != "" {
		amount, err := formFloat(r, "amount")
		if err != nil {
			h.sendServiceError(w, r, "[API_DIARY_ERROR]", err)
			return
		}
		in.Amount = amount
	}

	entry, err := h.farm.AddDiaryEntry(r.Context(), user.ID, in)
	if err != nil {
		h.sendServiceError(w, r, "[API_DIARY_ERROR]", err)
		return
	}

	h.sendJSON(w, entry, http.StatusCreated)
}

// DeleteDiaryEntry handles DELETE /api/diary/{id}
func (h *FarmHandler) DeleteDiaryEntry(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err == nil {
		err = h.farm.DeleteDiaryEntry(r.Context(), user.ID, id)
	}
	if err != nil {
		h.sendServiceError(w, r, "[API_DIARY_ERROR]", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTasks handles GET /api/tasks
func (h *FarmHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	limit, offset, err := pageParams(r)
	if err != nil {
		h.sendServiceError(w, r, "[API_TASKS_ERROR]", err)
		return
	}

	tasks, err := h.farm.ListTasks(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.sendServiceError(w, r, "[API_TASKS_ERROR]", err)
		return
	}

	h.sendJSON(w, tasks, http.StatusOK)
}

// AddTask handles POST /api/tasks
func (h *FarmHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	task, err := h.farm.AddTask(r.Context(), user.ID, services.TaskInput{
		TaskName:    r.PostFormValue("task_name"),
		TaskDate:    r.PostFormValue("task_date"),
		TaskType:    r.PostFormValue("task_type"),
		TaskDetails: r.PostFormValue("task_details"),
	})
	if err != nil {
		h.sendServiceError(w, r, "[API_TASKS_ERROR]", err)
		return
	}

	h.sendJSON(w, task, http.StatusCreated)
}

// CompleteTask handles POST /api/tasks/{id}/complete
func (h *FarmHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err == nil {
		err = h.farm.CompleteTask(r.Context(), user.ID, id)
	}
	if err != nil {
		h.sendServiceError(w, r, "[API_TASKS_ERROR]", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteTask handles DELETE /api/tasks/{id}
func (h *FarmHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err == nil {
		err = h.farm.DeleteTask(r.Context(), user.ID, id)
	}
	if err != nil {
		h.sendServiceError(w, r, "[API_TASKS_ERROR]", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes registers the diary and task routes
func (h *FarmHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/diary", h.ListDiary).Methods("GET")
	router.HandleFunc("/api/diary", h.AddDiaryEntry).Methods("POST")
	router.HandleFunc("/api/diary/{id}", h.DeleteDiaryEntry).Methods("DELETE")
	router.HandleFunc("/api/tasks", h.ListTasks).Methods("GET")
	router.HandleFunc("/api/tasks", h.AddTask).Methods("POST")
	router.HandleFunc("/api/tasks/{id}/complete", h.CompleteTask).Methods("POST")
	router.HandleFunc("/api/tasks/{id}", h.DeleteTask).Methods("DELETE")
}

// pageParams reads the limit and offset query parameters. Out-of-range
// values are clamped by the service.
func pageParams(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit", 0); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
