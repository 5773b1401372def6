package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"todoTracker/internal/forms"
	"todoTracker/internal/logger"
	"todoTracker/internal/middleware"
	"todoTracker/internal/models/task"
	"todoTracker/internal/service"

	"go.uber.org/zap"
)

// parsePage reads ?page=. Absent means the first page, "last" the final one;
// anything else that is not a positive integer is rejected.
func parsePage(raw string) (int, bool) {
	switch raw {
	case "":
		return 1, true
	case "last":
		return service.LastPage, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.CurrentUser(r.Context())
	q := r.URL.Query()

	page, ok := parsePage(q.Get("page"))
	if !ok {
		logger.Warn("HTTP: Invalid page parameter",
			zap.String("page", q.Get("page")),
			zap.String("request_id", middleware.GetRequestID(r.Context())))
		h.NotFound(w, r)
		return
	}

	filter := task.NewListFilter(q.Get("status"), q.Get("priority"), q.Get("search"), q.Get("sort"))
	filter.Page = page

	result, err := h.tasks.ListTasks(r.Context(), u.ID, filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	statusFilter := string(result.Filter.Status)
	if statusFilter == "" {
		statusFilter = "all"
	}
	h.render(w, r, http.StatusOK, "task_list.html", map[string]any{
		"Page":         result,
		"Tasks":        result.Tasks,
		"Stats":        result.Stats,
		"Filter":       result.Filter,
		"StatusFilter": statusFilter,
		"Sort":         result.Filter.Sort.String(),
	})
}

func (h *Handler) TaskDetail(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.CurrentUser(r.Context())
	id, ok := idParam(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	t, err := h.tasks.GetTask(r.Context(), u.ID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "task_detail.html", map[string]any{"Task": t})
}

func (h *Handler) renderTaskForm(w http.ResponseWriter, r *http.Request, status int, form *forms.TaskForm, t *task.Task) {
	data := map[string]any{
		"Form":       form,
		"FormTitle":  "Create New Task",
		"ButtonText": "Create Task",
		"Action":     "/task/create/",
	}
	if t != nil {
		data["Task"] = t
		data["FormTitle"] = "Update Task"
		data["ButtonText"] = "Update Task"
		data["Action"] = fmt.Sprintf("/task/%d/update/", t.ID)
	}
	h.render(w, r, status, "task_form.html", data)
}

func (h *Handler) CreateTaskPage(w http.ResponseWriter, r *http.Request) {
	h.renderTaskForm(w, r, http.StatusOK, forms.NewTaskForm(), nil)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	u, _ := middleware.CurrentUser(r.Context())

	if err := r.ParseForm(); err != nil {
		h.errorPage(w, r, http.StatusBadRequest)
		return
	}

	form := forms.ParseTaskForm(r.PostForm)
	if !form.Valid() {
		h.renderTaskForm(w, r, http.StatusOK, form, nil)
		return
	}

	created, err := h.tasks.CreateTask(r.Context(), u.ID, form.Options()...)
	if err != nil {
		if form.Errors.Merge(err) {
			h.renderTaskForm(w, r, http.StatusOK, form, nil)
			return
		}
		h.handleError(w, r, err)
		return
	}

	logger.Info("HTTP: Task created",
		zap.Int64("task_id", created.ID),
		zap.Duration("ms", time.Since(start)))

	addFlash(w, r, FlashSuccess, "Task created successfully!")
	redirect(w, r, "/tasks/")
}

func (h *Handler) UpdateTaskPage(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.CurrentUser(r.Context())
	id, ok := idParam(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	t, err := h.tasks.GetTask(r.Context(), u.ID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.renderTaskForm(w, r, http.StatusOK, forms.TaskFormFrom(t), t)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.CurrentUser(r.Context())
	id, ok := idParam(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	// Someone else's task is a 404 before the form is even looked at.
	t, err := h.tasks.GetTask(r.Context(), u.ID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.errorPage(w, r, http.StatusBadRequest)
		return
	}

	form := forms.ParseTaskForm(r.PostForm)
	if !form.Valid() {
		h.renderTaskForm(w, r, http.StatusOK, form, t)
		return
	}

	if _, err := h.tasks.UpdateTask(r.Context(), u.ID, id, form.Options()...); err != nil {
		if form.Errors.Merge(err) {
			h.renderTaskForm(w, r, http.StatusOK, form, t)
			return
		}
		h.handleError(w, r, err)
		return
	}

	addFlash(w, r, FlashSuccess, "Task updated successfully!")
	redirect(w, r, "/tasks/")
}

func (h *Handler) DeleteTaskPage(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.CurrentUser(r.Context())
	id, ok := idParam(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	t, err := h.tasks.GetTask(r.Context(), u.ID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "task_confirm_delete.html", map[string]any{"Task": t})
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.CurrentUser(r.Context())
	id, ok := idParam(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	if err := h.tasks.DeleteTask(r.Context(), u.ID, id); err != nil {
		h.handleError(w, r, err)
		return
	}

	addFlash(w, r, FlashSuccess, "Task deleted successfully!")
	redirect(w, r, "/tasks/")
}

func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.CurrentUser(r.Context())
	id, ok := idParam(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	t, err := h.tasks.ToggleTask(r.Context(), u.ID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if t.IsCompleted() {
		addFlash(w, r, FlashSuccess, fmt.Sprintf(`Task "%s" marked as completed!`, t.Title))
	} else {
		addFlash(w, r, FlashInfo, fmt.Sprintf(`Task "%s" marked as pending.`, t.Title))
	}
	redirect(w, r, "/tasks/")
}
