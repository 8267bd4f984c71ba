package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"family-tasks/internal/export"
	"family-tasks/internal/model"
	"family-tasks/internal/service"
	"family-tasks/internal/store"
)

const maxBodySize = 64 << 10 // 64KB

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tasks":  s.tasks.Stats().TotalTasks,
	})
}

// Task handlers

func (s *Server) handleListTasks(c *gin.Context) {
	filter := store.Filter{
		Assignee: c.Query("assignee"),
		Query:    c.Query("q"),
	}
	if raw := c.Query("status"); raw != "" {
		status, err := model.ParseStatus(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}

	tasks := s.tasks.ListTasks(filter)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tasks":   tasks,
		"count":   len(tasks),
	})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var input service.TaskInput
	if !bindJSON(c, &input) {
		return
	}

	task, err := s.tasks.CreateTask(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "task": task})
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.tasks.GetTask(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var update service.TaskUpdate
	if !bindJSON(c, &update) {
		return
	}

	task, err := s.tasks.UpdateTask(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

func (s *Server) handleToggleTask(c *gin.Context) {
	task, err := s.tasks.ToggleTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	task, err := s.tasks.DeleteTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

func (s *Server) handleUndo(c *gin.Context) {
	task, ok := s.tasks.Undo(c.Request.Context())
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": s.tasks.Stats()})
}

// Family handlers

type memberRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleFamily(c *gin.Context) {
	roster, err := s.family.Roster(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "family": roster})
}

func (s *Server) handleAddMember(c *gin.Context) {
	var req memberRequest
	if !bindJSON(c, &req) {
		return
	}

	member, err := s.family.AddMember(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "member": member})
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	if err := s.family.RemoveMember(c.Request.Context(), c.Param("name")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Reports

func (s *Server) handleReport(c *gin.Context) {
	digest, err := s.digests.Build(c.Request.Context(), s.now())
	if err != nil {
		writeError(c, err)
		return
	}
	if strings.EqualFold(c.Query("format"), "text") {
		c.String(http.StatusOK, service.FormatText(digest))
		return
	}
	c.JSON(http.StatusOK, digest)
}

func (s *Server) handleExport(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", "json"))
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := s.exporter.Export(c.Request.Context(), format)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="family-tasks.%s"`, format))
	c.Data(http.StatusOK, export.ContentType(format), data)
}

// handleEvents streams store changes as server-sent events, starting with
// the current stats.
func (s *Server) handleEvents(c *gin.Context) {
	st := s.tasks.Store()
	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	c.SSEvent("snapshot", st.Stats())
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case change, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(change.Kind), change)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// Helpers

func bindJSON(c *gin.Context, dst any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrUnknownMember):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTask),
		errors.Is(err, service.ErrInvalidMember),
		errors.Is(err, export.ErrUnknownFormat):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, err.Error())
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}
