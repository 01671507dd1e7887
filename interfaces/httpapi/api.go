package httpapi

import (
	"net/http"
	"time"

	"github.com/relaysync/conductor/application/coordinator"
	"github.com/relaysync/conductor/domain/project"
	"github.com/relaysync/conductor/domain/task"
)

// createProjectRequest is the body for POST /api/projects.
type createProjectRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Projects == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "NOT_CONFIGURED"})
		return
	}
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil || req.ID == "" {
		badRequest(w, "id is required")
		return
	}
	now := time.Now()
	p := &project.Project{ID: req.ID, Name: req.Name, Path: req.Path, CreatedAt: now, LastActivity: now}
	if err := s.cfg.Projects.Upsert(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Projects == nil {
		writeJSON(w, http.StatusOK, []project.Project{})
		return
	}
	rows, err := s.cfg.Projects.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Projects == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NOT_FOUND"})
		return
	}
	p, err := s.cfg.Projects.Get(r.Context(), r.PathValue("projectId"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NOT_FOUND", Reason: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// createTaskRequest is the body for POST /api/projects/:projectId/tasks.
type createTaskRequest struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Prompt   string      `json:"prompt"`
	Priority int         `json:"priority"`
	Config   task.Config `json:"config"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "NOT_CONFIGURED"})
		return
	}
	projectID := r.PathValue("projectId")
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil || req.ID == "" {
		badRequest(w, "id is required")
		return
	}
	t := &task.Task{
		ID:        req.ID,
		ProjectID: projectID,
		Name:      req.Name,
		Prompt:    req.Prompt,
		Priority:  req.Priority,
		Status:    task.StatusQueued,
		Config:    req.Config,
	}
	if err := s.tasks.Create(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeJSON(w, http.StatusOK, []*task.Task{})
		return
	}
	projectID := r.PathValue("projectId")
	filter := task.ListFilter{ProjectID: projectID, OrderBy: task.OrderByPriority, Descending: true}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = []task.Status{task.Status(v)}
	}
	rows, err := s.tasks.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "TASK_NOT_FOUND"})
		return
	}
	t, err := s.tasks.Get(r.Context(), r.PathValue("taskId"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "TASK_NOT_FOUND", Reason: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "NOT_CONFIGURED"})
		return
	}
	if err := s.tasks.Delete(r.Context(), r.PathValue("taskId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleClaimTaskConvenience backs POST /api/projects/:projectId/claim-task
// (§6), the auto-advance entry point for a node with no active task.
func (s *Server) handleClaimTaskConvenience(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")
	var req coordinator.ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	resp, err := s.h.ClaimNext(r.Context(), projectID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// taskCompleteRequest is the body for POST /api/tasks/:id/complete.
type taskCompleteRequest struct {
	NodeID          string         `json:"nodeId"`
	ExpectedVersion int64          `json:"expectedVersion"`
	Success         bool           `json:"success"`
	Summary         string         `json:"summary,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	Error           string         `json:"error,omitempty"`
	Iteration       int            `json:"iteration,omitempty"`
}

func (s *Server) handleTaskComplete(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	var req taskCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	status := task.StatusCompleted
	if !req.Success {
		status = task.StatusFailed
	}
	pushReq := coordinator.PushRequest{
		NodeID: req.NodeID,
		Tasks: []coordinator.PushTaskUpdate{{
			ID:              taskID,
			ExpectedVersion: req.ExpectedVersion,
			Status:          string(status),
			Iteration:       req.Iteration,
			Result: map[string]any{
				"success": req.Success,
				"summary": req.Summary,
				"data":    req.Data,
				"error":   req.Error,
			},
		}},
	}
	resp, err := s.h.Push(r.Context(), r.URL.Query().Get("projectId"), pushReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.Results[0])
}

// handleTaskDefStatus returns one task as Pull reports it. The agent's
// outbox does not call it: drainOutbox confirms a replayed push from the
// push result's Applied flag.
func (s *Server) handleTaskDefStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	resp, err := s.h.Pull(r.Context(), coordinator.PullRequest{TaskIDs: []string{taskID}})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(resp.Tasks) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "TASK_NOT_FOUND"})
		return
	}
	writeJSON(w, http.StatusOK, resp.Tasks[0])
}

func (s *Server) handleTaskIterations(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Iterations == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	rows, err := s.cfg.Iterations.List(r.Context(), r.PathValue("taskId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleProjectStats(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")
	summary, err := s.h.Status(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

