package approval

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusNotRequired Status = "not_required"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
)

// Tier identifies which of the two independent sign-offs of a project slice is being changed.
type Tier string

const (
	TierLead    Tier = "lead"
	TierManager Tier = "manager"
)

type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

// ProjectApproval tracks the lead and manager sign-off of the part of one timesheet booked on one project.
type ProjectApproval struct {
	Id                  int
	TimesheetId         int
	ProjectId           int
	OwnerId             int
	LeadId              *int
	ManagerId           *int
	LeadStatus          Status
	ManagerStatus       Status
	LeadReason          string
	ManagerReason       string
	LeadDecidedAt       *time.Time
	ManagerDecidedAt    *time.Time
	EntryCount          int
	TotalHours          decimal.Decimal
	OwnerIsActiveMember bool
	CreatedAt           time.Time
}

// EntryLine is the part of a time entry the fan-out needs. Entries without a project are not passed in.
type EntryLine struct {
	ProjectId int
	Hours     decimal.Decimal
}

type slice struct {
	projectId  int
	entryCount int
	totalHours decimal.Decimal
}

func groupByProject(lines []EntryLine) []slice {
	byProject := make(map[int]*slice)
	for _, line := range lines {
		s, ok := byProject[line.ProjectId]
		if !ok {
			s = &slice{projectId: line.ProjectId, totalHours: decimal.Zero}
			byProject[line.ProjectId] = s
		}
		s.entryCount++
		s.totalHours = s.totalHours.Add(line.Hours)
	}

	slices := make([]slice, 0, len(byProject))
	for _, s := range byProject {
		slices = append(slices, *s)
	}
	sort.Slice(slices, func(i, j int) bool { return slices[i].projectId < slices[j].projectId })
	return slices
}

// ApproverIds returns the distinct lead and manager ids of the given approvals.
func ApproverIds(approvals []ProjectApproval) []int {
	seen := make(map[int]bool)
	var ids []int
	add := func(id *int) {
		if id != nil && !seen[*id] {
			seen[*id] = true
			ids = append(ids, *id)
		}
	}
	for _, a := range approvals {
		add(a.LeadId)
		add(a.ManagerId)
	}
	return ids
}

func (a ProjectApproval) statusOf(tier Tier) Status {
	if tier == TierLead {
		return a.LeadStatus
	}
	return a.ManagerStatus
}
