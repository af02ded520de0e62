package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hourline/hourline/internal/utils"
	"github.com/hourline/hourline/pkg/actor"
	"github.com/hourline/hourline/pkg/apperror"
	"github.com/hourline/hourline/pkg/audit"
	"github.com/hourline/hourline/pkg/project"
	log "github.com/sirupsen/logrus"
)

const (
	AuditCreated  audit.Action = "project_approval_created"
	AuditApproved audit.Action = "project_approval_approved"
	AuditRejected audit.Action = "project_approval_rejected"
)

// FanOut is the outcome of EnsureForTimesheet.
type FanOut struct {
	// Approvals holds every approval of the timesheet, pre-existing ones included.
	Approvals []ProjectApproval
	Created   int
}

type Service interface {
	EnsureForTimesheet(ctx context.Context, submitter actor.Actor, timesheetId int, ownerId int, lines []EntryLine) (FanOut, error)
	ListForTimesheet(ctx context.Context, timesheetId int) ([]ProjectApproval, error)
	Decide(ctx context.Context, approvalId int, action DecisionAction, reason string) (ProjectApproval, error)
}

type ServiceImpl struct {
	repo     Repository
	projects project.Directory
	recorder audit.Recorder
	clock    utils.Clock
}

func NewService(repo Repository, projects project.Directory, recorder audit.Recorder, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{
		repo:     repo,
		projects: projects,
		recorder: recorder,
		clock:    clock,
	}
}

// EnsureForTimesheet creates one approval per project touched by lines, skipping projects that already
// have one. It is safe to call again after a partial failure. The submitter is recorded as the actor of
// every approval it creates.
func (s *ServiceImpl) EnsureForTimesheet(ctx context.Context, submitter actor.Actor, timesheetId int, ownerId int, lines []EntryLine) (FanOut, error) {
	existing, err := s.repo.ListForTimesheet(ctx, timesheetId)
	if err != nil {
		return FanOut{}, err
	}
	covered := make(map[int]bool, len(existing))
	for _, a := range existing {
		covered[a.ProjectId] = true
	}

	result := FanOut{Approvals: existing}
	for _, sl := range groupByProject(lines) {
		if covered[sl.projectId] {
			continue
		}
		a, err := s.newApproval(ctx, timesheetId, ownerId, sl)
		if err != nil {
			return result, err
		}
		created, ok, err := s.repo.Create(ctx, a)
		if err != nil {
			return result, fmt.Errorf("failed to create approval for project %d: %w", sl.projectId, err)
		}
		if !ok {
			// a concurrent submission got there first
			log.Debugf("project approval for timesheet %d project %d already exists", timesheetId, sl.projectId)
			continue
		}
		s.recorder.Record(ctx, audit.Entry{
			EntityType: audit.EntityProjectApproval,
			EntityId:   created.Id,
			Action:     AuditCreated,
			Actor:      submitter,
			Context:    map[string]any{"timesheetId": timesheetId, "projectId": created.ProjectId},
			After:      created,
		})
		result.Approvals = append(result.Approvals, created)
		result.Created++
	}
	return result, nil
}

func (s *ServiceImpl) newApproval(ctx context.Context, timesheetId int, ownerId int, sl slice) (ProjectApproval, error) {
	a := ProjectApproval{
		TimesheetId:   timesheetId,
		ProjectId:     sl.projectId,
		OwnerId:       ownerId,
		LeadStatus:    StatusNotRequired,
		ManagerStatus: StatusPending,
		EntryCount:    sl.entryCount,
		TotalHours:    sl.totalHours,
		CreatedAt:     s.clock.Now(),
	}

	p, err := s.projects.Get(ctx, sl.projectId)
	switch {
	case errors.Is(err, project.ErrProjectNotFound):
		log.Warnf("project %d referenced by timesheet %d is not in the directory", sl.projectId, timesheetId)
	case err != nil:
		return ProjectApproval{}, fmt.Errorf("failed to load project %d: %w", sl.projectId, err)
	default:
		a.LeadId = p.LeadId
		a.ManagerId = p.ManagerId
		if p.LeadId != nil {
			a.LeadStatus = StatusPending
		}
	}

	member, err := s.projects.IsActiveMember(ctx, sl.projectId, ownerId)
	if err != nil {
		return ProjectApproval{}, fmt.Errorf("failed to check membership of project %d: %w", sl.projectId, err)
	}
	a.OwnerIsActiveMember = member
	if !member {
		log.Infof("owner %d of timesheet %d is not an active member of project %d", ownerId, timesheetId, sl.projectId)
	}
	return a, nil
}

// ListForTimesheet returns what the current actor may see: everything for the owner and manager-level
// roles, otherwise only the slices the actor leads or manages.
func (s *ServiceImpl) ListForTimesheet(ctx context.Context, timesheetId int) ([]ProjectApproval, error) {
	current, err := actor.Current(ctx)
	if err != nil {
		return nil, apperror.Forbidden("no authenticated actor")
	}
	approvals, err := s.repo.ListForTimesheet(ctx, timesheetId)
	if err != nil {
		return nil, err
	}
	if current.Role.IsManagerLevel() {
		return approvals, nil
	}

	visible := make([]ProjectApproval, 0, len(approvals))
	for _, a := range approvals {
		if a.OwnerId == current.Id || isAssigned(a.LeadId, current.Id) || isAssigned(a.ManagerId, current.Id) {
			visible = append(visible, a)
		}
	}
	return visible, nil
}

// Decide records the current actor's sign-off on a project slice. The actor must be the slice's
// assigned lead or manager; a lead column is decided before a manager column when the actor holds both.
func (s *ServiceImpl) Decide(ctx context.Context, approvalId int, action DecisionAction, reason string) (ProjectApproval, error) {
	current, err := actor.Current(ctx)
	if err != nil {
		return ProjectApproval{}, apperror.Forbidden("no authenticated actor")
	}

	before, err := s.repo.Get(ctx, approvalId)
	if err != nil {
		if errors.Is(err, ErrApprovalNotFound) {
			return ProjectApproval{}, apperror.NotFound("project approval %d not found", approvalId)
		}
		return ProjectApproval{}, err
	}

	ownership := actor.Unrelated
	if before.OwnerId == current.Id {
		ownership = actor.Owner
	}
	if decision := actor.Decide(current.Role, ownership, actor.ActionProjectSliceDecision); !decision.Allowed {
		return ProjectApproval{}, apperror.Forbidden("%s", decision.Reason)
	}

	tier, ok := tierFor(before, current.Id)
	if !ok {
		return ProjectApproval{}, apperror.Forbidden("you are not the lead or manager of project %d", before.ProjectId)
	}

	var status Status
	switch action {
	case ActionApprove:
		status = StatusApproved
		reason = ""
	case ActionReject:
		status = StatusRejected
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return ProjectApproval{}, apperror.Validation("a rejection reason is required")
		}
	default:
		return ProjectApproval{}, apperror.Validation("unknown decision action %q", action)
	}

	if before.statusOf(tier) != StatusPending {
		return ProjectApproval{}, apperror.InvalidState("the %s decision for project %d is already %s", tier, before.ProjectId, before.statusOf(tier))
	}

	entry := audit.Entry{
		EntityType: audit.EntityProjectApproval,
		EntityId:   approvalId,
		Action:     AuditApproved,
		Actor:      current,
		Context:    map[string]any{"tier": string(tier), "timesheetId": before.TimesheetId, "projectId": before.ProjectId},
	}
	if status == StatusRejected {
		entry.Action = AuditRejected
		entry.Context["reason"] = reason
	}

	return audit.Track(ctx, s.recorder, entry, before, func() (ProjectApproval, error) {
		if err := s.repo.Decide(ctx, approvalId, tier, status, reason, s.clock.Now()); err != nil {
			if errors.Is(err, ErrAlreadyDecided) {
				return ProjectApproval{}, apperror.InvalidState("the %s decision for project %d has already been recorded", tier, before.ProjectId)
			}
			return ProjectApproval{}, err
		}
		return s.repo.Get(ctx, approvalId)
	})
}

func tierFor(a ProjectApproval, actorId int) (Tier, bool) {
	isLead := isAssigned(a.LeadId, actorId)
	isManager := isAssigned(a.ManagerId, actorId)
	switch {
	case isLead && (a.LeadStatus == StatusPending || !isManager):
		return TierLead, true
	case isManager:
		return TierManager, true
	}
	return "", false
}

func isAssigned(assignee *int, actorId int) bool {
	return assignee != nil && *assignee == actorId
}
