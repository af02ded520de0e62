package timesheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hourline/hourline/internal/event_bus"
	"github.com/hourline/hourline/internal/utils"
	"github.com/hourline/hourline/pkg/actor"
	"github.com/hourline/hourline/pkg/apperror"
	"github.com/hourline/hourline/pkg/approval"
	"github.com/hourline/hourline/pkg/audit"
	"github.com/hourline/hourline/pkg/employee"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	AuditCreated            audit.Action = "created"
	AuditSubmitted          audit.Action = "submitted"
	AuditManagerApproved    audit.Action = "manager_approved"
	AuditManagerRejected    audit.Action = "manager_rejected"
	AuditManagementApproved audit.Action = "management_approved"
	AuditManagementRejected audit.Action = "management_rejected"
	AuditBilled             audit.Action = "billed"
	AuditSoftDeleted        audit.Action = "soft_deleted"
	AuditHardDeleted        audit.Action = "hard_deleted"
)

type DecisionAction string

const (
	Approve DecisionAction = "approve"
	Reject  DecisionAction = "reject"
)

// LifecycleService owns the status of timesheets.
type LifecycleService interface {
	Create(ctx context.Context, ownerId int, weekStart time.Time) (Timesheet, error)
	Get(ctx context.Context, id int) (Timesheet, error)
	ListForOwner(ctx context.Context, ownerId int) ([]Timesheet, error)
	Submit(ctx context.Context, id int) (Timesheet, error)
	ManagerDecision(ctx context.Context, id int, action DecisionAction, reason string) (Timesheet, error)
	ManagementDecision(ctx context.Context, id int, action DecisionAction, reason string) (Timesheet, error)
	MarkBilled(ctx context.Context, id int) (Timesheet, error)
	SoftDelete(ctx context.Context, id int, reason string) (Timesheet, error)
	HardDelete(ctx context.Context, id int) error
}

type LifecycleServiceImpl struct {
	repo      Repository
	approvals approval.Service
	employees employee.Directory
	access    access
	recorder  audit.Recorder
	eventBus  *event_bus.EventBus
	clock     utils.Clock
}

func NewLifecycleService(
	repo Repository,
	approvals approval.Service,
	employees employee.Directory,
	recorder audit.Recorder,
	eventBus *event_bus.EventBus,
	clock utils.Clock,
) *LifecycleServiceImpl {
	return &LifecycleServiceImpl{
		repo:      repo,
		approvals: approvals,
		employees: employees,
		access:    access{employees: employees},
		recorder:  recorder,
		eventBus:  eventBus,
		clock:     clock,
	}
}

func (s *LifecycleServiceImpl) Create(ctx context.Context, ownerId int, weekStart time.Time) (Timesheet, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return Timesheet{}, err
	}
	if _, err := s.employees.Get(ctx, ownerId); err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return Timesheet{}, apperror.NotFound("employee %d not found", ownerId)
		}
		return Timesheet{}, err
	}
	if err := s.access.authorize(ctx, current, ownerId, actor.ActionCreateTimesheet); err != nil {
		return Timesheet{}, err
	}

	start := WeekStartOf(weekStart)
	now := s.clock.Now()
	ts := Timesheet{
		OwnerId:    ownerId,
		WeekStart:  start,
		WeekEnd:    WeekEndOf(start),
		TotalHours: decimal.Zero,
		Status:     StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.repo.Create(ctx, ts)
	if err != nil {
		if errors.Is(err, ErrDuplicateWeek) {
			return Timesheet{}, apperror.Conflict("a timesheet for employee %d and the week starting %s already exists", ownerId, dateKey(start))
		}
		return Timesheet{}, err
	}

	entry := s.auditEntry(current, created.Id, AuditCreated)
	entry.Context = map[string]any{"ownerId": ownerId, "weekStart": dateKey(start)}
	entry.After = created
	s.recorder.Record(ctx, entry)
	return created, nil
}

func (s *LifecycleServiceImpl) Get(ctx context.Context, id int) (Timesheet, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return Timesheet{}, err
	}
	ts, err := s.load(ctx, id)
	if err != nil {
		return Timesheet{}, err
	}
	if err := s.access.authorize(ctx, current, ts.OwnerId, actor.ActionViewTimesheet); err != nil {
		return Timesheet{}, err
	}
	return ts, nil
}

func (s *LifecycleServiceImpl) ListForOwner(ctx context.Context, ownerId int) ([]Timesheet, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.access.authorize(ctx, current, ownerId, actor.ActionViewTimesheet); err != nil {
		return nil, err
	}
	return s.repo.ListForOwner(ctx, ownerId)
}

// Submit hands the timesheet to the next approval tier. Owners with a manager-level role skip the
// manager tier and go straight to management_pending. The timesheet row stays locked from the empty
// check to the status write, so entry changes cannot slip in between.
func (s *LifecycleServiceImpl) Submit(ctx context.Context, id int) (Timesheet, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return Timesheet{}, err
	}

	var submitted Timesheet
	var owner employee.Employee
	var fanOut approval.FanOut
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		before, err := loadForUpdate(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := s.access.authorize(ctx, current, before.OwnerId, actor.ActionSubmit); err != nil {
			return err
		}
		if !before.IsEditable() {
			return apperror.InvalidState("a timesheet cannot be submitted while it is %s", before.Status)
		}
		if !before.TotalHours.IsPositive() {
			return apperror.InvalidState("cannot submit an empty timesheet")
		}

		owner, err = s.employees.Get(ctx, before.OwnerId)
		if err != nil {
			if errors.Is(err, employee.ErrEmployeeNotFound) {
				return apperror.NotFound("employee %d not found", before.OwnerId)
			}
			return err
		}
		target := StatusSubmitted
		if owner.Role.IsManagerLevel() {
			target = StatusManagementPending
		}

		// fan-out runs first so that a failed submission can simply be retried
		fanOut, err = s.fanOut(ctx, repo, before, current)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		next := before
		next.Status = target
		next.SubmittedAt = &now
		next.SubmittedBy = &current.Id
		next.UpdatedAt = now

		entry := s.auditEntry(current, id, AuditSubmitted)
		entry.Context = map[string]any{"status": string(target), "totalHours": before.TotalHours.String()}
		if fanOut.Created > 0 {
			entry.SideEffects = []string{fmt.Sprintf("project_approvals_created:%d", fanOut.Created)}
		}
		submitted, err = s.transition(ctx, repo, entry, before, next)
		return err
	})
	if err != nil {
		return Timesheet{}, err
	}

	s.publish(ctx, event_bus.TimesheetSubmittedEvent, event_bus.TimesheetSubmitted{
		RecipientIds: s.submissionRecipients(ctx, submitted, owner, fanOut.Approvals),
		TimesheetId:  submitted.Id,
		SubmittedBy:  current.Id,
		WeekStart:    submitted.WeekStart,
		TotalHours:   submitted.TotalHours,
		Status:       string(submitted.Status),
	})
	return submitted, nil
}

func (s *LifecycleServiceImpl) ManagerDecision(ctx context.Context, id int, action DecisionAction, reason string) (Timesheet, error) {
	return s.decide(ctx, id, action, reason, decisionTier{
		policy:   actor.ActionManagerDecision,
		from:     []Status{StatusSubmitted},
		approved: StatusManagerApproved,
		rejected: StatusManagerRejected,
		approve: func(next *Timesheet, by int, at time.Time) {
			next.ApprovedAt = &at
			next.ApprovedBy = &by
		},
		auditApproved: AuditManagerApproved,
		auditRejected: AuditManagerRejected,
	})
}

func (s *LifecycleServiceImpl) ManagementDecision(ctx context.Context, id int, action DecisionAction, reason string) (Timesheet, error) {
	return s.decide(ctx, id, action, reason, decisionTier{
		policy:   actor.ActionManagementDecision,
		from:     []Status{StatusManagerApproved, StatusManagementPending},
		approved: StatusFrozen,
		rejected: StatusManagementRejected,
		approve: func(next *Timesheet, by int, at time.Time) {
			next.VerifiedAt = &at
			next.VerifiedBy = &by
			next.IsVerified = true
			next.IsFrozen = true
			if next.ApprovedBy == nil {
				next.ApprovedAt = &at
				next.ApprovedBy = &by
			}
		},
		auditApproved: AuditManagementApproved,
		auditRejected: AuditManagementRejected,
	})
}

type decisionTier struct {
	policy        actor.Action
	from          []Status
	approved      Status
	rejected      Status
	approve       func(next *Timesheet, by int, at time.Time)
	auditApproved audit.Action
	auditRejected audit.Action
}

func (s *LifecycleServiceImpl) decide(ctx context.Context, id int, action DecisionAction, reason string, tier decisionTier) (Timesheet, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return Timesheet{}, err
	}
	before, err := s.load(ctx, id)
	if err != nil {
		return Timesheet{}, err
	}
	// permission first: self-approval fails whatever the status is
	if err := s.access.authorize(ctx, current, before.OwnerId, tier.policy); err != nil {
		return Timesheet{}, err
	}
	if !statusIn(before.Status, tier.from) {
		return Timesheet{}, apperror.InvalidState("cannot %s a timesheet that is %s", action, before.Status)
	}

	now := s.clock.Now()
	next := before
	next.UpdatedAt = now
	entry := s.auditEntry(current, id, "")

	switch action {
	case Approve:
		next.Status = tier.approved
		tier.approve(&next, current.Id, now)
		entry.Action = tier.auditApproved
	case Reject:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return Timesheet{}, apperror.Validation("a rejection reason is required")
		}
		next.Status = tier.rejected
		next.RejectedAt = &now
		next.RejectedBy = &current.Id
		next.RejectionReason = reason
		entry.Action = tier.auditRejected
		entry.Context = map[string]any{"reason": reason}
	default:
		return Timesheet{}, apperror.Validation("unknown decision action %q", action)
	}

	decided, err := s.transition(ctx, s.repo, entry, before, next)
	if err != nil {
		return Timesheet{}, err
	}

	s.publish(ctx, event_bus.TimesheetDecidedEvent, event_bus.TimesheetDecided{
		RecipientIds: []int{decided.OwnerId},
		TimesheetId:  decided.Id,
		DecidedBy:    current.Id,
		Status:       string(decided.Status),
		Reason:       decided.RejectionReason,
	})
	return decided, nil
}

// MarkBilled is the hook for the billing subsystem: frozen -> billed.
func (s *LifecycleServiceImpl) MarkBilled(ctx context.Context, id int) (Timesheet, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return Timesheet{}, err
	}
	if decision := actor.Decide(current.Role, actor.Unrelated, actor.ActionMarkBilled); !decision.Allowed {
		return Timesheet{}, apperror.Forbidden("%s", decision.Reason)
	}
	before, err := s.load(ctx, id)
	if err != nil {
		return Timesheet{}, err
	}
	if before.Status != StatusFrozen {
		return Timesheet{}, apperror.InvalidState("only frozen timesheets can be billed, this one is %s", before.Status)
	}

	now := s.clock.Now()
	next := before
	next.Status = StatusBilled
	next.IsBilled = true
	next.BilledAt = &now
	next.UpdatedAt = now
	return s.transition(ctx, s.repo, s.auditEntry(current, id, AuditBilled), before, next)
}

func (s *LifecycleServiceImpl) SoftDelete(ctx context.Context, id int, reason string) (Timesheet, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return Timesheet{}, err
	}
	if decision := actor.Decide(current.Role, actor.Unrelated, actor.ActionSoftDelete); !decision.Allowed {
		return Timesheet{}, apperror.Forbidden("%s", decision.Reason)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Timesheet{}, apperror.Validation("a deletion reason is required")
	}
	before, err := s.load(ctx, id)
	if err != nil {
		return Timesheet{}, err
	}
	if blockers := BlockingDependencies(before); len(blockers) > 0 {
		return Timesheet{}, apperror.InvalidState("timesheet %d cannot be deleted: %s", id, joinReasons(blockers))
	}

	entry := s.auditEntry(current, id, AuditSoftDeleted)
	entry.Context = map[string]any{"reason": reason}
	return audit.Track(ctx, s.recorder, entry, before, func() (Timesheet, error) {
		deleted, err := s.repo.SoftDelete(ctx, id, current.Id, reason, s.clock.Now())
		if errors.Is(err, ErrStatusChanged) {
			return Timesheet{}, apperror.InvalidState("timesheet %d changed while it was being deleted", id)
		}
		return deleted, err
	})
}

// HardDelete permanently removes a soft-deleted timesheet with its entries and approvals.
func (s *LifecycleServiceImpl) HardDelete(ctx context.Context, id int) error {
	current, err := currentActor(ctx)
	if err != nil {
		return err
	}
	if decision := actor.Decide(current.Role, actor.Unrelated, actor.ActionHardDelete); !decision.Allowed {
		return apperror.Forbidden("%s", decision.Reason)
	}
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTimesheetNotFound) {
			return notFound(id)
		}
		return err
	}
	if !before.IsDeleted() {
		return apperror.InvalidState("timesheet %d must be soft-deleted before it can be permanently deleted", id)
	}

	_, err = audit.Track(ctx, s.recorder, s.auditEntry(current, id, AuditHardDeleted), &before, func() (*Timesheet, error) {
		if err := s.repo.HardDelete(ctx, id); err != nil {
			if errors.Is(err, ErrStatusChanged) {
				return nil, notFound(id)
			}
			return nil, err
		}
		return nil, nil
	})
	return err
}

// transition performs the compare-and-swap status write and records it. A writer that lost the race
// gets an invalid-state error carrying the status it lost against.
func (s *LifecycleServiceImpl) transition(ctx context.Context, repo Repository, entry audit.Entry, before Timesheet, next Timesheet) (Timesheet, error) {
	if !CanTransition(before.Status, next.Status) {
		return Timesheet{}, apperror.InvalidState("cannot move a timesheet from %s to %s", before.Status, next.Status)
	}
	if entry.Context == nil {
		entry.Context = map[string]any{}
	}
	entry.Context["from"] = string(before.Status)
	entry.Context["to"] = string(next.Status)

	return audit.Track(ctx, s.recorder, entry, before, func() (Timesheet, error) {
		updated, err := repo.TransitionStatus(ctx, before.Status, next)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrStatusChanged) {
			return Timesheet{}, err
		}
		latest, getErr := repo.Get(ctx, before.Id)
		if getErr != nil || latest.IsDeleted() {
			return Timesheet{}, notFound(before.Id)
		}
		return Timesheet{}, apperror.InvalidState("timesheet %d is now %s and can no longer move from %s to %s",
			before.Id, latest.Status, before.Status, next.Status)
	})
}

func (s *LifecycleServiceImpl) load(ctx context.Context, id int) (Timesheet, error) {
	ts, err := s.repo.Get(ctx, id)
	return live(id, ts, err)
}

func loadForUpdate(ctx context.Context, repo Repository, id int) (Timesheet, error) {
	ts, err := repo.GetForUpdate(ctx, id)
	return live(id, ts, err)
}

// live maps a missing or soft-deleted timesheet to not found.
func live(id int, ts Timesheet, err error) (Timesheet, error) {
	if err != nil {
		if errors.Is(err, ErrTimesheetNotFound) {
			return Timesheet{}, notFound(id)
		}
		return Timesheet{}, err
	}
	if ts.IsDeleted() {
		return Timesheet{}, notFound(id)
	}
	return ts, nil
}

func (s *LifecycleServiceImpl) fanOut(ctx context.Context, repo Repository, ts Timesheet, current actor.Actor) (approval.FanOut, error) {
	entries, err := repo.ListEntries(ctx, ts.Id)
	if err != nil {
		return approval.FanOut{}, err
	}
	lines := make([]approval.EntryLine, 0, len(entries))
	for _, e := range entries {
		if e.ProjectId != nil {
			lines = append(lines, approval.EntryLine{ProjectId: *e.ProjectId, Hours: e.Hours})
		}
	}
	result, err := s.approvals.EnsureForTimesheet(ctx, current, ts.Id, ts.OwnerId, lines)
	if err != nil {
		return approval.FanOut{}, fmt.Errorf("failed to create project approvals: %w", err)
	}
	return result, nil
}

// submissionRecipients returns who should hear about a submission: the owner's manager and the project
// approvers for the manager tier, every management user for management_pending.
func (s *LifecycleServiceImpl) submissionRecipients(ctx context.Context, ts Timesheet, owner employee.Employee, approvals []approval.ProjectApproval) []int {
	var candidates []int
	if ts.Status == StatusManagementPending {
		management, err := s.employees.ListByRole(ctx, actor.RoleManagement)
		if err != nil {
			log.Errorf("failed to list management users for timesheet %d: %v", ts.Id, err)
		}
		for _, e := range management {
			candidates = append(candidates, e.Id)
		}
	} else {
		if owner.ManagerId != nil {
			candidates = append(candidates, *owner.ManagerId)
		}
		candidates = append(candidates, approval.ApproverIds(approvals)...)
	}

	seen := map[int]bool{ts.OwnerId: true}
	recipients := make([]int, 0, len(candidates))
	for _, id := range candidates {
		if !seen[id] {
			seen[id] = true
			recipients = append(recipients, id)
		}
	}
	return recipients
}

func (s *LifecycleServiceImpl) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if err := s.eventBus.Publish(event_bus.NewEvent(ctx, eventType, data)); err != nil {
		log.Errorf("failed to publish %s event: %v", eventType, err)
	}
}

func (s *LifecycleServiceImpl) auditEntry(current actor.Actor, id int, action audit.Action) audit.Entry {
	return audit.Entry{
		EntityType: audit.EntityTimesheet,
		EntityId:   id,
		Action:     action,
		Actor:      current,
	}
}

func statusIn(status Status, allowed []Status) bool {
	for _, a := range allowed {
		if status == a {
			return true
		}
	}
	return false
}
