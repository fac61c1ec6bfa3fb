package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harborhq/furlough/pkg/leave"
	"github.com/harborhq/furlough/pkg/ratelimit"
)

func (s *Server) registerApprovalRoutes(r *gin.Engine) {
	approvers := r.Group("/v1/requests", s.requireUser,
		s.requireRole(RoleManager, RoleHR, RoleAdmin),
		s.rateLimited(ratelimit.CategoryApproval))
	approvers.POST("/:id/approve", s.handleApproveRequest)
	approvers.POST("/:id/reject", s.handleRejectRequest)
}

func (s *Server) handleApproveRequest(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	_ = c.ShouldBindJSON(&req) // note is optional, body may be empty

	s.decideRequest(c, leave.StatusApproved, req.Note)
}

func (s *Server) handleRejectRequest(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Note == "" {
		respondError(c, http.StatusBadRequest, "rejection requires a note", s.logger)
		return
	}

	s.decideRequest(c, leave.StatusRejected, req.Note)
}

// decideRequest applies an approve/reject decision: the approver must be
// permitted to act on the owner, may not decide their own request, and the
// lifecycle must allow the move.
func (s *Server) decideRequest(c *gin.Context, to leave.Status, note string) {
	u := currentUser(c)
	record, ok := s.loadRequest(c)
	if !ok {
		return
	}

	if record.UserID == u.ID {
		respondError(c, http.StatusForbidden, "cannot decide your own request", s.logger)
		return
	}
	if !s.canDecide(u, record) {
		respondError(c, http.StatusForbidden, "not a manager of this user", s.logger)
		return
	}
	if err := leave.Transition(record.Status, to); err != nil {
		respondError(c, http.StatusConflict, "request already decided", s.logger)
		return
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        to,
		"approver_id":   u.ID,
		"decided_at":    now,
		"decision_note": note,
	}
	if err := s.db.Model(record).Updates(updates).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to store decision", s.logger)
		return
	}

	decisionLogger := requestLogger(c, s.logger)
	decisionLogger.Info().
		Uint("request", record.ID).
		Uint("approver", u.ID).
		Str("decision", string(to)).
		Msg("leave request decided")

	record.Status = to
	record.ApproverID = &u.ID
	record.DecidedAt = &now
	record.DecisionNote = note
	c.JSON(http.StatusOK, record)
}

// canDecide: HR and admins act on anyone; managers only on their reports.
func (s *Server) canDecide(u *User, record *LeaveRequest) bool {
	if u.Role == RoleAdmin || u.Role == RoleHR {
		return true
	}
	var owner User
	if err := s.db.First(&owner, record.UserID).Error; err != nil {
		return false
	}
	return owner.ManagerID != nil && *owner.ManagerID == u.ID
}
