package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/auth"
	"taskboard/internal/query"
)

type createTaskRequest struct {
	Title    string `json:"title"`
	Points   any    `json:"points"`
	Assignee string `json:"assignee"`
	Status   string `json:"status"`
}

// requireOperation gates a handler on the caller's role.
func (s *Server) requireOperation(c *gin.Context, op auth.Operation) bool {
	if auth.Allowed(callerRole(c), op) {
		return true
	}
	s.respondError(c, http.StatusForbidden, fmt.Errorf("role %s may not perform this operation", callerRole(c)))
	return false
}

// handleListTasks filters and sorts a snapshot of the task collection.
func (s *Server) handleListTasks(c *gin.Context) {
	if !s.requireOperation(c, auth.OpList) {
		return
	}

	tasks := query.Apply(s.store.List(), query.Params{
		Status:   c.Query("status"),
		Assignee: c.Query("assignee"),
		Points:   c.Query("points"),
		Sort:     c.Query("sort"),
	})
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTask inserts a new task with server-assigned id and timestamps.
func (s *Server) handleCreateTask(c *gin.Context) {
	if !s.requireOperation(c, auth.OpCreate) {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.Create(req.Title, req.Points, req.Assignee, req.Status)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, task)
}

// handleGetTask fetches a single task by id.
func (s *Server) handleGetTask(c *gin.Context) {
	if !s.requireOperation(c, auth.OpList) {
		return
	}

	task, err := s.store.Get(c.Param("id"))
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleUpdateTask applies a partial patch to an existing task. Only keys
// present in the body are touched.
func (s *Server) handleUpdateTask(c *gin.Context) {
	if !s.requireOperation(c, auth.OpUpdate) {
		return
	}

	patch := map[string]any{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.Update(c.Param("id"), patch)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	if !s.requireOperation(c, auth.OpDelete) {
		return
	}

	if err := s.store.Delete(c.Param("id")); err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"deleted": true})
}
