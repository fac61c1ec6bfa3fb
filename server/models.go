package main

import (
	"time"

	"github.com/harborhq/furlough/pkg/leave"
)

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
	RoleAdmin    = "admin"
)

// User is an account able to submit leave requests. Managers are users
// referenced by their reports' ManagerID.
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Email     string `gorm:"uniqueIndex" json:"email"`
	Name      string `json:"name"`
	Role      string `gorm:"index" json:"role"`
	ManagerID *uint  `json:"manager_id,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// APIToken stores hashed bearer tokens issued to users.
type APIToken struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index"`
	Label     string
	TokenHash string `gorm:"uniqueIndex"`
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// LeaveType is an admin-defined category of absence with a yearly allowance.
type LeaveType struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	Name             string `gorm:"uniqueIndex" json:"name"`
	DaysPerYear      int    `json:"days_per_year"`
	RequiresApproval bool   `json:"requires_approval"`
	Active           bool   `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"-"`
}

// LeaveRequest is one time-off request moving through the approval
// lifecycle. Days holds the business-day count computed at submission.
type LeaveRequest struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	UserID         uint         `gorm:"index" json:"user_id"`
	LeaveTypeID    uint         `gorm:"index" json:"leave_type_id"`
	StartDate      time.Time    `gorm:"index" json:"start_date"`
	EndDate        time.Time    `json:"end_date"`
	Days           int          `json:"days"`
	Reason         string       `gorm:"type:text" json:"reason,omitempty"`
	Status         leave.Status `gorm:"index" json:"status"`
	ApproverID     *uint        `json:"approver_id,omitempty"`
	DecidedAt      *time.Time   `json:"decided_at,omitempty"`
	DecisionNote   string       `json:"decision_note,omitempty"`
	AttachmentPath string       `json:"attachment_path,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"-"`
}

// Holiday is a non-working day excluded from business-day counts.
type Holiday struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Date      time.Time `gorm:"uniqueIndex" json:"date"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"-"`
}

func allModels() []any {
	return []any{&User{}, &APIToken{}, &LeaveType{}, &LeaveRequest{}, &Holiday{}}
}
