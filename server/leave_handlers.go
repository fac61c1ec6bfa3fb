package main

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"
	"gorm.io/gorm"

	"github.com/harborhq/furlough/pkg/leave"
	"github.com/harborhq/furlough/pkg/policy"
	"github.com/harborhq/furlough/pkg/ratelimit"
)

const dateLayout = "2006-01-02"

func (s *Server) registerLeaveRoutes(r *gin.Engine) {
	authed := r.Group("/v1", s.requireUser)
	authed.POST("/requests", s.rateLimited(ratelimit.CategoryCreation), s.handleSubmitRequest)
	authed.GET("/requests", s.rateLimited(ratelimit.CategoryRead), s.handleListRequests)
	authed.GET("/requests/:id", s.rateLimited(ratelimit.CategoryRead), s.handleGetRequest)
	authed.POST("/requests/:id/cancel", s.rateLimited(ratelimit.CategoryApproval), s.handleCancelRequest)
	authed.POST("/requests/:id/attachment", s.rateLimited(ratelimit.CategoryUpload), s.handleUploadAttachment)
	authed.GET("/balance", s.rateLimited(ratelimit.CategoryRead), s.handleBalance)
}

func (s *Server) handleSubmitRequest(c *gin.Context) {
	u := currentUser(c)

	var req struct {
		LeaveTypeID uint   `json:"leave_type_id"`
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
		Reason      string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), s.logger)
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid start_date", s.logger)
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid end_date", s.logger)
		return
	}

	var lt LeaveType
	if err := s.db.First(&lt, req.LeaveTypeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusBadRequest, "unknown leave type", s.logger)
		} else {
			respondError(c, http.StatusInternalServerError, "leave type lookup failed", s.logger)
		}
		return
	}
	if !lt.Active {
		respondError(c, http.StatusBadRequest, "leave type inactive", s.logger)
		return
	}

	holidays, err := s.holidaysBetween(start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "holiday lookup failed", s.logger)
		return
	}
	days, err := leave.BusinessDays(start, end, holidays)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), s.logger)
		return
	}
	if days == 0 {
		respondError(c, http.StatusBadRequest, "range contains no business days", s.logger)
		return
	}

	bal, err := s.balanceFor(u.ID, &lt, start.Year())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "balance lookup failed", s.logger)
		return
	}

	eval := policy.Evaluate(&policy.Request{
		Start:       leave.Day(start),
		End:         leave.Day(end),
		Days:        days,
		Available:   bal.Available(),
		SubmittedAt: leave.Day(time.Now()),
	}, s.leavePolicy)
	if !eval.Acceptable {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "request violates leave policy",
			"violations": eval.Violations,
			"request_id": requestID(c),
		})
		return
	}

	record := LeaveRequest{
		UserID:      u.ID,
		LeaveTypeID: lt.ID,
		StartDate:   leave.Day(start),
		EndDate:     leave.Day(end),
		Days:        days,
		Reason:      req.Reason,
		Status:      leave.StatusPending,
	}
	if !lt.RequiresApproval {
		now := time.Now().UTC()
		record.Status = leave.StatusApproved
		record.DecidedAt = &now
		record.DecisionNote = "auto-approved"
	}

	if err := s.db.Create(&record).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to persist request", s.logger)
		return
	}

	submitLogger := requestLogger(c, s.logger)
	submitLogger.Info().
		Uint("request", record.ID).
		Uint("user", u.ID).
		Int("days", days).
		Str("status", string(record.Status)).
		Msg("leave request submitted")

	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleListRequests(c *gin.Context) {
	u := currentUser(c)
	query := s.db.Model(&LeaveRequest{}).Order("created_at desc")

	switch u.Role {
	case RoleAdmin, RoleHR:
		if userFilter := c.Query("user"); userFilter != "" {
			query = query.Where("user_id = ?", userFilter)
		}
	case RoleManager:
		query = query.Where(
			"user_id = ? OR user_id IN (SELECT id FROM users WHERE manager_id = ?)",
			u.ID, u.ID,
		)
	default:
		query = query.Where("user_id = ?", u.ID)
	}

	if status := c.Query("status"); status != "" {
		if !leave.Status(status).Valid() {
			respondError(c, http.StatusBadRequest, "unknown status", s.logger)
			return
		}
		query = query.Where("status = ?", status)
	}

	var requests []LeaveRequest
	if err := query.Find(&requests).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list requests", s.logger)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (s *Server) handleGetRequest(c *gin.Context) {
	u := currentUser(c)
	record, ok := s.loadRequest(c)
	if !ok {
		return
	}
	if !s.canView(u, record) {
		respondError(c, http.StatusForbidden, "not your request", s.logger)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleCancelRequest(c *gin.Context) {
	u := currentUser(c)
	record, ok := s.loadRequest(c)
	if !ok {
		return
	}
	if record.UserID != u.ID {
		respondError(c, http.StatusForbidden, "only the owner may cancel", s.logger)
		return
	}
	if err := leave.Transition(record.Status, leave.StatusCancelled); err != nil {
		respondError(c, http.StatusConflict, "request cannot be cancelled", s.logger)
		return
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     leave.StatusCancelled,
		"decided_at": now,
	}
	if err := s.db.Model(record).Updates(updates).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to cancel request", s.logger)
		return
	}

	record.Status = leave.StatusCancelled
	record.DecidedAt = &now
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleUploadAttachment(c *gin.Context) {
	u := currentUser(c)
	record, ok := s.loadRequest(c)
	if !ok {
		return
	}
	if record.UserID != u.ID {
		respondError(c, http.StatusForbidden, "only the owner may attach documents", s.logger)
		return
	}
	if record.Status.Terminal() {
		respondError(c, http.StatusConflict, "request is closed", s.logger)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "missing file", s.logger)
		return
	}

	name := xid.New().String() + filepath.Ext(file.Filename)
	dest := filepath.Join(s.uploadDir, name)
	if err := c.SaveUploadedFile(file, dest); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to store attachment", s.logger)
		return
	}

	if err := s.db.Model(record).Update("attachment_path", dest).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to record attachment", s.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attachment_path": dest})
}

func (s *Server) handleBalance(c *gin.Context) {
	u := currentUser(c)
	year := time.Now().Year()
	if y := c.Query("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid year", s.logger)
			return
		}
		year = parsed
	}

	var types []LeaveType
	if err := s.db.Where("active = ?", true).Order("name").Find(&types).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list leave types", s.logger)
		return
	}

	resp := make([]gin.H, 0, len(types))
	for i := range types {
		bal, err := s.balanceFor(u.ID, &types[i], year)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "balance lookup failed", s.logger)
			return
		}
		resp = append(resp, gin.H{
			"leave_type": types[i].Name,
			"allowance":  bal.Allowance,
			"used":       bal.Used,
			"pending":    bal.Pending,
			"available":  bal.Available(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "balances": resp})
}

// loadRequest fetches the request named in the :id param, responding with
// the appropriate error itself when it can't.
func (s *Server) loadRequest(c *gin.Context) (*LeaveRequest, bool) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid request id", s.logger)
		return nil, false
	}
	var record LeaveRequest
	if err := s.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "request not found", s.logger)
		} else {
			respondError(c, http.StatusInternalServerError, "failed to load request", s.logger)
		}
		return nil, false
	}
	return &record, true
}

func (s *Server) canView(u *User, record *LeaveRequest) bool {
	switch {
	case u.Role == RoleAdmin || u.Role == RoleHR:
		return true
	case record.UserID == u.ID:
		return true
	case u.Role == RoleManager:
		var owner User
		if err := s.db.First(&owner, record.UserID).Error; err != nil {
			return false
		}
		return owner.ManagerID != nil && *owner.ManagerID == u.ID
	}
	return false
}

func (s *Server) holidaysBetween(start, end time.Time) ([]time.Time, error) {
	var holidays []Holiday
	if err := s.db.Where("date BETWEEN ? AND ?", leave.Day(start), leave.Day(end)).Find(&holidays).Error; err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0, len(holidays))
	for _, h := range holidays {
		dates = append(dates, h.Date)
	}
	return dates, nil
}

func (s *Server) balanceFor(userID uint, lt *LeaveType, year int) (leave.Balance, error) {
	used, err := s.sumDays(userID, lt.ID, leave.StatusApproved, year)
	if err != nil {
		return leave.Balance{}, err
	}
	pending, err := s.sumDays(userID, lt.ID, leave.StatusPending, year)
	if err != nil {
		return leave.Balance{}, err
	}
	return leave.Balance{Allowance: lt.DaysPerYear, Used: used, Pending: pending}, nil
}

func (s *Server) sumDays(userID, typeID uint, status leave.Status, year int) (int, error) {
	from, to := leave.YearBounds(year)
	var total int
	err := s.db.Model(&LeaveRequest{}).
		Where("user_id = ? AND leave_type_id = ? AND status = ? AND start_date BETWEEN ? AND ?",
			userID, typeID, status, from, to).
		Select("COALESCE(SUM(days), 0)").
		Scan(&total).Error
	return total, err
}

func parseUintParam(raw string) (uint, error) {
	if raw == "" {
		return 0, errors.New("empty")
	}
	id64, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id64), nil
}
