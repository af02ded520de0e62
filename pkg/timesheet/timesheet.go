package timesheet

import (
	"time"

	"github.com/hourline/hourline/internal/utils"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft              Status = "draft"
	StatusSubmitted          Status = "submitted"
	StatusManagerApproved    Status = "manager_approved"
	StatusManagerRejected    Status = "manager_rejected"
	StatusManagementPending  Status = "management_pending"
	StatusManagementRejected Status = "management_rejected"
	StatusFrozen             Status = "frozen"
	StatusBilled             Status = "billed"
)

// transitions is the complete status graph. Anything not listed here is illegal.
var transitions = map[Status][]Status{
	StatusDraft:              {StatusSubmitted, StatusManagementPending},
	StatusManagerRejected:    {StatusSubmitted, StatusManagementPending},
	StatusManagementRejected: {StatusSubmitted, StatusManagementPending},
	StatusSubmitted:          {StatusManagerApproved, StatusManagerRejected},
	StatusManagerApproved:    {StatusFrozen, StatusManagementRejected},
	StatusManagementPending:  {StatusFrozen, StatusManagementRejected},
	StatusFrozen:             {StatusBilled},
}

// CanTransition reports whether the status graph has an edge from -> to.
func CanTransition(from Status, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusManagerRejected || s == StatusManagementRejected
}

type Timesheet struct {
	Id              int
	OwnerId         int
	WeekStart       time.Time
	WeekEnd         time.Time
	TotalHours      decimal.Decimal
	Status          Status
	SubmittedAt     *time.Time
	SubmittedBy     *int
	ApprovedAt      *time.Time
	ApprovedBy      *int
	RejectedAt      *time.Time
	RejectedBy      *int
	RejectionReason string
	VerifiedAt      *time.Time
	VerifiedBy      *int
	IsFrozen        bool
	IsVerified      bool
	IsBilled        bool
	BilledAt        *time.Time
	DeletedAt       *time.Time
	DeletedBy       *int
	DeletedReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsEditable reports whether entries of the timesheet may be created, changed or removed.
func (t Timesheet) IsEditable() bool {
	return t.Status.Editable() && !t.IsFrozen
}

func (t Timesheet) IsDeleted() bool {
	return t.DeletedAt != nil
}

// Covers reports whether date falls inside the timesheet's week.
func (t Timesheet) Covers(date time.Time) bool {
	d := utils.DateOnly(date)
	return !d.Before(t.WeekStart) && !d.After(t.WeekEnd)
}

type EntryType string

const (
	EntryProjectTask EntryType = "project_task"
	EntryCustomTask  EntryType = "custom_task"
)

type TimeEntry struct {
	Id          int
	TimesheetId int
	ProjectId   *int
	TaskId      *int
	CustomTask  string
	EntryType   EntryType
	Date        time.Time
	Hours       decimal.Decimal
	IsBillable  bool
	Description string
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WeekStartOf returns the Monday of the ISO week containing date.
func WeekStartOf(date time.Time) time.Time {
	d := utils.DateOnly(date)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func WeekEndOf(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 6)
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func dateKey(date time.Time) string {
	return date.Format(time.DateOnly)
}

func sumHours(entries []TimeEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Hours)
	}
	return total
}
