package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/harborhq/furlough/pkg/leave"
	"github.com/harborhq/furlough/pkg/ratelimit"
)

func (s *Server) registerAdminRoutes(r *gin.Engine) {
	admin := r.Group("/v1/admin", s.requireUser, s.rateLimited(ratelimit.CategoryAdmin))

	types := admin.Group("/leave-types", s.requireRole(RoleAdmin))
	types.POST("", s.handleCreateLeaveType)
	types.GET("", s.handleListLeaveTypes)
	types.PUT("/:id", s.handleUpdateLeaveType)
	types.DELETE("/:id", s.handleDeactivateLeaveType)

	users := admin.Group("/users", s.requireRole(RoleAdmin))
	users.POST("", s.handleCreateUser)
	users.GET("", s.handleListUsers)
	users.POST("/:id/tokens", s.handleIssueToken)

	holidays := admin.Group("/holidays", s.requireRole(RoleAdmin))
	holidays.POST("", s.handleCreateHoliday)
	holidays.GET("", s.handleListHolidays)
	holidays.DELETE("/:id", s.handleDeleteHoliday)

	admin.GET("/reports/summary", s.requireRole(RoleHR, RoleAdmin), s.handleSummaryReport)
}

func (s *Server) handleCreateLeaveType(c *gin.Context) {
	var req struct {
		Name             string `json:"name"`
		DaysPerYear      int    `json:"days_per_year"`
		RequiresApproval *bool  `json:"requires_approval"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), s.logger)
		return
	}
	if req.Name == "" || req.DaysPerYear < 0 {
		respondError(c, http.StatusBadRequest, "name and non-negative days_per_year required", s.logger)
		return
	}

	requiresApproval := true
	if req.RequiresApproval != nil {
		requiresApproval = *req.RequiresApproval
	}
	record := LeaveType{
		Name:             req.Name,
		DaysPerYear:      req.DaysPerYear,
		RequiresApproval: requiresApproval,
		Active:           true,
	}
	if err := s.db.Create(&record).Error; err != nil {
		respondError(c, http.StatusConflict, "leave type already exists", s.logger)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleListLeaveTypes(c *gin.Context) {
	var types []LeaveType
	if err := s.db.Order("name").Find(&types).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list leave types", s.logger)
		return
	}
	c.JSON(http.StatusOK, types)
}

func (s *Server) handleUpdateLeaveType(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid leave type id", s.logger)
		return
	}

	var req struct {
		Name             *string `json:"name"`
		DaysPerYear      *int    `json:"days_per_year"`
		RequiresApproval *bool   `json:"requires_approval"`
		Active           *bool   `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), s.logger)
		return
	}

	var record LeaveType
	if err := s.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "leave type not found", s.logger)
		} else {
			respondError(c, http.StatusInternalServerError, "failed to load leave type", s.logger)
		}
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.DaysPerYear != nil {
		if *req.DaysPerYear < 0 {
			respondError(c, http.StatusBadRequest, "days_per_year must be non-negative", s.logger)
			return
		}
		updates["days_per_year"] = *req.DaysPerYear
	}
	if req.RequiresApproval != nil {
		updates["requires_approval"] = *req.RequiresApproval
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) > 0 {
		if err := s.db.Model(&record).Updates(updates).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "failed to update leave type", s.logger)
			return
		}
	}

	c.JSON(http.StatusOK, record)
}

// Deactivation rather than deletion: historical requests keep referencing
// the type.
func (s *Server) handleDeactivateLeaveType(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid leave type id", s.logger)
		return
	}

	result := s.db.Model(&LeaveType{}).Where("id = ?", id).Update("active", false)
	if result.Error != nil {
		respondError(c, http.StatusInternalServerError, "failed to deactivate leave type", s.logger)
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "leave type not found", s.logger)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req struct {
		Email     string `json:"email"`
		Name      string `json:"name"`
		Role      string `json:"role"`
		ManagerID *uint  `json:"manager_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), s.logger)
		return
	}
	if req.Email == "" || req.Name == "" {
		respondError(c, http.StatusBadRequest, "email and name required", s.logger)
		return
	}
	switch req.Role {
	case RoleEmployee, RoleManager, RoleHR, RoleAdmin:
	case "":
		req.Role = RoleEmployee
	default:
		respondError(c, http.StatusBadRequest, "unknown role", s.logger)
		return
	}
	if req.ManagerID != nil {
		var manager User
		if err := s.db.First(&manager, *req.ManagerID).Error; err != nil {
			respondError(c, http.StatusBadRequest, "manager not found", s.logger)
			return
		}
	}

	record := User{
		Email:     req.Email,
		Name:      req.Name,
		Role:      req.Role,
		ManagerID: req.ManagerID,
		Active:    true,
	}
	if err := s.db.Create(&record).Error; err != nil {
		respondError(c, http.StatusConflict, "email already registered", s.logger)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleListUsers(c *gin.Context) {
	var users []User
	if err := s.db.Order("email").Find(&users).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list users", s.logger)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) handleIssueToken(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid user id", s.logger)
		return
	}

	var req struct {
		Label            string `json:"label"`
		ExpiresInSeconds int64  `json:"expires_in_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), s.logger)
		return
	}

	var user User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "user not found", s.logger)
		} else {
			respondError(c, http.StatusInternalServerError, "failed to load user", s.logger)
		}
		return
	}

	raw, err := generateAPIToken()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to generate token", s.logger)
		return
	}

	expiresAt := time.Time{}
	if req.ExpiresInSeconds > 0 {
		expiresAt = time.Now().Add(time.Duration(req.ExpiresInSeconds) * time.Second)
	}

	record := APIToken{
		UserID:    user.ID,
		Label:     req.Label,
		TokenHash: s.tokenHasher.HashString(raw),
		ExpiresAt: expiresAt,
	}
	if err := s.db.Create(&record).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to persist token", s.logger)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         record.ID,
		"token":      raw,
		"label":      record.Label,
		"expires_at": record.ExpiresAt,
	})
}

func (s *Server) handleCreateHoliday(c *gin.Context) {
	var req struct {
		Date string `json:"date"`
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), s.logger)
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid date", s.logger)
		return
	}

	record := Holiday{Date: leave.Day(date), Name: req.Name}
	if err := s.db.Create(&record).Error; err != nil {
		respondError(c, http.StatusConflict, "holiday already defined", s.logger)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleListHolidays(c *gin.Context) {
	var holidays []Holiday
	if err := s.db.Order("date").Find(&holidays).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list holidays", s.logger)
		return
	}
	c.JSON(http.StatusOK, holidays)
}

func (s *Server) handleDeleteHoliday(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid holiday id", s.logger)
		return
	}
	result := s.db.Delete(&Holiday{}, id)
	if result.Error != nil {
		respondError(c, http.StatusInternalServerError, "failed to delete holiday", s.logger)
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "holiday not found", s.logger)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSummaryReport(c *gin.Context) {
	year := time.Now().Year()
	if y := c.Query("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid year", s.logger)
			return
		}
		year = parsed
	}
	from, to := leave.YearBounds(year)

	type summaryRow struct {
		LeaveType string `json:"leave_type"`
		Status    string `json:"status"`
		Requests  int    `json:"requests"`
		Days      int    `json:"days"`
	}
	var rows []summaryRow
	err := s.db.Model(&LeaveRequest{}).
		Select("leave_types.name AS leave_type, leave_requests.status AS status, COUNT(*) AS requests, COALESCE(SUM(leave_requests.days), 0) AS days").
		Joins("JOIN leave_types ON leave_types.id = leave_requests.leave_type_id").
		Where("leave_requests.start_date BETWEEN ? AND ?", from, to).
		Group("leave_types.name, leave_requests.status").
		Order("leave_types.name, leave_requests.status").
		Scan(&rows).Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to build report", s.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"year": year, "summary": rows})
}
