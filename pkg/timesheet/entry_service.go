package timesheet

import (
	"context"
	"errors"

	"github.com/hourline/hourline/internal/utils"
	"github.com/hourline/hourline/pkg/actor"
	"github.com/hourline/hourline/pkg/apperror"
	"github.com/hourline/hourline/pkg/audit"
	"github.com/hourline/hourline/pkg/employee"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	AuditEntriesAdded   audit.Action = "entries_added"
	AuditEntriesDeleted audit.Action = "entries_deleted"
	AuditEntryUpdated   audit.Action = "entry_updated"
	AuditTotalsUpdated  audit.Action = "total_hours_recomputed"
)

// EntryService owns the time entries of a timesheet and keeps its total hours in sync.
type EntryService interface {
	ListEntries(ctx context.Context, timesheetId int) ([]TimeEntry, error)
	AddEntry(ctx context.Context, timesheetId int, entry TimeEntry) (TimeEntry, error)
	AddEntries(ctx context.Context, timesheetId int, entries []TimeEntry) ([]TimeEntry, error)
	ReplaceEntries(ctx context.Context, timesheetId int, entries []TimeEntry) ([]TimeEntry, error)
	UpdateEntry(ctx context.Context, timesheetId int, entry TimeEntry) (TimeEntry, error)
	DeleteEntry(ctx context.Context, timesheetId int, entryId int) error
	RecomputeTotalHours(ctx context.Context, timesheetId int) (decimal.Decimal, error)
}

type EntryServiceImpl struct {
	repo      Repository
	validator Validator
	access    access
	recorder  audit.Recorder
	clock     utils.Clock
}

func NewEntryService(repo Repository, validator Validator, employees employee.Directory, recorder audit.Recorder, clock utils.Clock) *EntryServiceImpl {
	return &EntryServiceImpl{
		repo:      repo,
		validator: validator,
		access:    access{employees: employees},
		recorder:  recorder,
		clock:     clock,
	}
}

// entryChange is the state handed to a mutation running inside the entry transaction.
type entryChange struct {
	repo     Repository
	ts       Timesheet
	existing []TimeEntry
}

// mutate loads and locks the timesheet, checks access and editability, runs fn and recomputes the
// total hours in the same transaction so the total always reflects the entries fn left behind.
func (s *EntryServiceImpl) mutate(ctx context.Context, current actor.Actor, timesheetId int, fn func(change entryChange) error) (Timesheet, error) {
	var updated Timesheet
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		ts, err := repo.GetForUpdate(ctx, timesheetId)
		if err != nil {
			if errors.Is(err, ErrTimesheetNotFound) {
				return notFound(timesheetId)
			}
			return err
		}
		if ts.IsDeleted() {
			return notFound(timesheetId)
		}
		if err := s.access.authorize(ctx, current, ts.OwnerId, actor.ActionEditEntries); err != nil {
			return err
		}
		if !ts.IsEditable() {
			return apperror.InvalidState("entries cannot be changed while the timesheet is %s", ts.Status)
		}

		existing, err := repo.ListEntries(ctx, timesheetId)
		if err != nil {
			return err
		}
		if err := fn(entryChange{repo: repo, ts: ts, existing: existing}); err != nil {
			return err
		}

		total, err := repo.RecomputeTotalHours(ctx, timesheetId, s.clock.Now())
		if err != nil {
			return err
		}
		ts.TotalHours = total
		updated = ts
		return nil
	})
	return updated, err
}

func (s *EntryServiceImpl) ListEntries(ctx context.Context, timesheetId int) ([]TimeEntry, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	ts, err := s.repo.Get(ctx, timesheetId)
	if err != nil {
		if errors.Is(err, ErrTimesheetNotFound) {
			return nil, notFound(timesheetId)
		}
		return nil, err
	}
	if ts.IsDeleted() {
		return nil, notFound(timesheetId)
	}
	if err := s.access.authorize(ctx, current, ts.OwnerId, actor.ActionViewTimesheet); err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, timesheetId)
}

func (s *EntryServiceImpl) AddEntry(ctx context.Context, timesheetId int, entry TimeEntry) (TimeEntry, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return TimeEntry{}, err
	}

	var created TimeEntry
	ts, err := s.mutate(ctx, current, timesheetId, func(change entryChange) error {
		accepted, err := s.validator.ValidateEntry(change.ts, entry, change.existing)
		if err != nil {
			return err
		}
		inserted, err := change.repo.InsertEntries(ctx, []TimeEntry{s.stamp(timesheetId, accepted)})
		if err != nil {
			return err
		}
		created = inserted[0]
		return nil
	})
	if err != nil {
		return TimeEntry{}, err
	}

	s.recordEntries(ctx, current, ts, AuditEntriesAdded, nil, []TimeEntry{created})
	return created, nil
}

func (s *EntryServiceImpl) AddEntries(ctx context.Context, timesheetId int, entries []TimeEntry) ([]TimeEntry, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}

	var created []TimeEntry
	ts, err := s.mutate(ctx, current, timesheetId, func(change entryChange) error {
		accepted, err := s.validator.ValidateBatch(change.ts, entries, change.existing)
		if err != nil {
			return err
		}
		created, err = change.repo.InsertEntries(ctx, s.stampAll(timesheetId, accepted))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordEntries(ctx, current, ts, AuditEntriesAdded, nil, created)
	return created, nil
}

// ReplaceEntries validates the new set as a batch, soft-deletes every live entry and stores the new set.
func (s *EntryServiceImpl) ReplaceEntries(ctx context.Context, timesheetId int, entries []TimeEntry) ([]TimeEntry, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}

	var previous, created []TimeEntry
	ts, err := s.mutate(ctx, current, timesheetId, func(change entryChange) error {
		var accepted []TimeEntry
		if len(entries) > 0 {
			var err error
			accepted, err = s.validator.ValidateBatch(change.ts, entries, nil)
			if err != nil {
				return err
			}
		}
		if _, err := change.repo.SoftDeleteEntries(ctx, timesheetId, nil, s.clock.Now()); err != nil {
			return err
		}
		previous = change.existing
		var err error
		created, err = change.repo.InsertEntries(ctx, s.stampAll(timesheetId, accepted))
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(previous) > 0 {
		s.recordEntries(ctx, current, ts, AuditEntriesDeleted, previous, nil)
	}
	if len(created) > 0 {
		s.recordEntries(ctx, current, ts, AuditEntriesAdded, nil, created)
	}
	return created, nil
}

func (s *EntryServiceImpl) UpdateEntry(ctx context.Context, timesheetId int, entry TimeEntry) (TimeEntry, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return TimeEntry{}, err
	}

	var before, updated TimeEntry
	ts, err := s.mutate(ctx, current, timesheetId, func(change entryChange) error {
		var err error
		before, err = change.repo.GetEntry(ctx, timesheetId, entry.Id)
		if err != nil {
			if errors.Is(err, ErrEntryNotFound) {
				return apperror.NotFound("time entry %d not found", entry.Id)
			}
			return err
		}
		accepted, err := s.validator.ValidateEntry(change.ts, entry, change.existing)
		if err != nil {
			return err
		}
		accepted.TimesheetId = timesheetId
		accepted.UpdatedAt = s.clock.Now()
		updated, err = change.repo.UpdateEntry(ctx, accepted)
		return err
	})
	if err != nil {
		return TimeEntry{}, err
	}

	s.recordEntries(ctx, current, ts, AuditEntryUpdated, []TimeEntry{before}, []TimeEntry{updated})
	return updated, nil
}

func (s *EntryServiceImpl) DeleteEntry(ctx context.Context, timesheetId int, entryId int) error {
	current, err := currentActor(ctx)
	if err != nil {
		return err
	}

	var deleted TimeEntry
	ts, err := s.mutate(ctx, current, timesheetId, func(change entryChange) error {
		var err error
		deleted, err = change.repo.GetEntry(ctx, timesheetId, entryId)
		if err != nil {
			if errors.Is(err, ErrEntryNotFound) {
				return apperror.NotFound("time entry %d not found", entryId)
			}
			return err
		}
		_, err = change.repo.SoftDeleteEntries(ctx, timesheetId, []int{entryId}, s.clock.Now())
		return err
	})
	if err != nil {
		return err
	}

	s.recordEntries(ctx, current, ts, AuditEntriesDeleted, []TimeEntry{deleted}, nil)
	return nil
}

// RecomputeTotalHours re-derives the stored total from the live entries. Calling it repeatedly yields
// the same value. It is allowed in any status because it never changes the entry set.
func (s *EntryServiceImpl) RecomputeTotalHours(ctx context.Context, timesheetId int) (decimal.Decimal, error) {
	current, err := currentActor(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	ts, err := s.repo.Get(ctx, timesheetId)
	if err != nil {
		if errors.Is(err, ErrTimesheetNotFound) {
			return decimal.Zero, notFound(timesheetId)
		}
		return decimal.Zero, err
	}
	if ts.IsDeleted() {
		return decimal.Zero, notFound(timesheetId)
	}
	if err := s.access.authorize(ctx, current, ts.OwnerId, actor.ActionViewTimesheet); err != nil {
		return decimal.Zero, err
	}

	total, err := s.repo.RecomputeTotalHours(ctx, timesheetId, s.clock.Now())
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Equal(ts.TotalHours) {
		log.Warnf("timesheet %d total hours drifted from %s to %s", timesheetId, ts.TotalHours, total)
		s.recorder.Record(ctx, audit.Entry{
			EntityType: audit.EntityTimesheet,
			EntityId:   timesheetId,
			Action:     AuditTotalsUpdated,
			Actor:      current,
			Before:     map[string]string{"totalHours": ts.TotalHours.String()},
			After:      map[string]string{"totalHours": total.String()},
		})
	}
	return total, nil
}

func (s *EntryServiceImpl) stamp(timesheetId int, e TimeEntry) TimeEntry {
	now := s.clock.Now()
	e.Id = 0
	e.TimesheetId = timesheetId
	e.DeletedAt = nil
	e.CreatedAt = now
	e.UpdatedAt = now
	return e
}

func (s *EntryServiceImpl) stampAll(timesheetId int, entries []TimeEntry) []TimeEntry {
	result := make([]TimeEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, s.stamp(timesheetId, e))
	}
	return result
}

func (s *EntryServiceImpl) recordEntries(ctx context.Context, current actor.Actor, ts Timesheet, action audit.Action, before []TimeEntry, after []TimeEntry) {
	entry := audit.Entry{
		EntityType: audit.EntityTimeEntry,
		EntityId:   ts.Id,
		Action:     action,
		Actor:      current,
		Context: map[string]any{
			"timesheetId": ts.Id,
			"totalHours":  ts.TotalHours.String(),
			"count":       max(len(before), len(after)),
		},
	}
	if before != nil {
		entry.Before = before
	}
	if after != nil {
		entry.After = after
	}
	s.recorder.Record(ctx, entry)
}
