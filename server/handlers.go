package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/blueprint"
	"github.com/randalmurphal/blueprint/notify"
	"github.com/randalmurphal/blueprint/runstore"
)

// runRequest is the body of POST /iba/run.
type runRequest struct {
	ProjectID string   `json:"project_id"`
	Publish   bool     `json:"publish"`
	Labels    []string `json:"labels"`
}

// runDetail is the body of GET /iba/runs/:id.
type runDetail struct {
	Run    *runstore.Run  `json:"run"`
	Events []notify.Event `json:"events"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id is required"})
		return
	}

	res, err := s.backend.Run(c.Request.Context(), req.ProjectID, blueprint.RunOptions{
		Principal: principal(c).Subject,
		Publish:   req.Publish,
		Labels:    req.Labels,
	})
	if err != nil {
		s.logger.Error("run request failed", "project_id", req.ProjectID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleListRuns(c *gin.Context) {
	f := runstore.Filter{
		ProjectID: c.Query("project_id"),
		Status:    c.Query("status"),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		f.Limit = n
	}

	runs, err := s.backend.ListRuns(c.Request.Context(), f)
	if err != nil {
		s.historyError(c, err)
		return
	}
	if runs == nil {
		runs = []runstore.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	id := c.Param("id")
	run, err := s.backend.GetRun(c.Request.Context(), id)
	if err != nil {
		s.historyError(c, err)
		return
	}
	events, err := s.backend.RunEvents(c.Request.Context(), id)
	if err != nil {
		s.historyError(c, err)
		return
	}
	if events == nil {
		events = []notify.Event{}
	}
	c.JSON(http.StatusOK, runDetail{Run: run, Events: events})
}

func (s *Server) historyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, runstore.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
	case errors.Is(err, blueprint.ErrHistoryDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.logger.Error("run history query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
