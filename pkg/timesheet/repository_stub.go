package timesheet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type RepositoryStub struct {
	mu              sync.RWMutex
	txMu            sync.Mutex
	timesheets      map[int]Timesheet
	entries         map[int]TimeEntry
	nextTimesheetId int
	nextEntryId     int
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		timesheets:      make(map[int]Timesheet),
		entries:         make(map[int]TimeEntry),
		nextTimesheetId: 1,
		nextEntryId:     1,
	}
}

// WithTransaction serializes transactional callers and restores the previous state when fn fails.
func (r *RepositoryStub) WithTransaction(_ context.Context, fn func(repo Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	savedTimesheets := make(map[int]Timesheet, len(r.timesheets))
	for k, v := range r.timesheets {
		savedTimesheets[k] = v
	}
	savedEntries := make(map[int]TimeEntry, len(r.entries))
	for k, v := range r.entries {
		savedEntries[k] = v
	}
	savedNextTimesheetId, savedNextEntryId := r.nextTimesheetId, r.nextEntryId
	r.mu.RUnlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.timesheets = savedTimesheets
		r.entries = savedEntries
		r.nextTimesheetId, r.nextEntryId = savedNextTimesheetId, savedNextEntryId
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *RepositoryStub) Create(_ context.Context, ts Timesheet) (Timesheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.timesheets {
		if existing.OwnerId == ts.OwnerId && existing.WeekStart.Equal(ts.WeekStart) && existing.DeletedAt == nil {
			return Timesheet{}, ErrDuplicateWeek
		}
	}
	ts.Id = r.nextTimesheetId
	r.nextTimesheetId++
	r.timesheets[ts.Id] = ts
	return ts, nil
}

func (r *RepositoryStub) Get(_ context.Context, id int) (Timesheet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ts, ok := r.timesheets[id]
	if !ok {
		return Timesheet{}, ErrTimesheetNotFound
	}
	return ts, nil
}

func (r *RepositoryStub) GetForUpdate(ctx context.Context, id int) (Timesheet, error) {
	return r.Get(ctx, id)
}

func (r *RepositoryStub) ListForOwner(_ context.Context, ownerId int) ([]Timesheet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Timesheet
	for _, ts := range r.timesheets {
		if ts.OwnerId == ownerId && ts.DeletedAt == nil {
			result = append(result, ts)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WeekStart.After(result[j].WeekStart) })
	return result, nil
}

func (r *RepositoryStub) TransitionStatus(_ context.Context, from Status, next Timesheet) (Timesheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.timesheets[next.Id]
	if !ok || current.Status != from || current.DeletedAt != nil {
		return Timesheet{}, ErrStatusChanged
	}
	// only status columns are written, like the SQL update
	next.TotalHours = current.TotalHours
	next.OwnerId = current.OwnerId
	next.WeekStart, next.WeekEnd = current.WeekStart, current.WeekEnd
	next.CreatedAt = current.CreatedAt
	r.timesheets[next.Id] = next
	return next, nil
}

func (r *RepositoryStub) SoftDelete(_ context.Context, id int, deletedBy int, reason string, at time.Time) (Timesheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.timesheets[id]
	if !ok || ts.DeletedAt != nil || ts.IsBilled || ts.IsFrozen {
		return Timesheet{}, ErrStatusChanged
	}
	ts.DeletedAt = &at
	ts.DeletedBy = &deletedBy
	ts.DeletedReason = reason
	ts.UpdatedAt = at
	r.timesheets[id] = ts
	return ts, nil
}

func (r *RepositoryStub) HardDelete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.timesheets[id]
	if !ok || ts.DeletedAt == nil {
		return ErrStatusChanged
	}
	delete(r.timesheets, id)
	for entryId, e := range r.entries {
		if e.TimesheetId == id {
			delete(r.entries, entryId)
		}
	}
	return nil
}

func (r *RepositoryStub) ListEntries(_ context.Context, timesheetId int) ([]TimeEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.liveEntries(timesheetId), nil
}

func (r *RepositoryStub) liveEntries(timesheetId int) []TimeEntry {
	var result []TimeEntry
	for _, e := range r.entries {
		if e.TimesheetId == timesheetId && e.DeletedAt == nil {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].Id < result[j].Id
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

func (r *RepositoryStub) GetEntry(_ context.Context, timesheetId int, entryId int) (TimeEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[entryId]
	if !ok || e.TimesheetId != timesheetId || e.DeletedAt != nil {
		return TimeEntry{}, ErrEntryNotFound
	}
	return e, nil
}

func (r *RepositoryStub) InsertEntries(_ context.Context, entries []TimeEntry) ([]TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(entries) == 0 {
		return nil, nil
	}
	created := make([]TimeEntry, 0, len(entries))
	for _, e := range entries {
		e.Id = r.nextEntryId
		r.nextEntryId++
		r.entries[e.Id] = e
		created = append(created, e)
	}
	return created, nil
}

func (r *RepositoryStub) UpdateEntry(_ context.Context, e TimeEntry) (TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.entries[e.Id]
	if !ok || current.TimesheetId != e.TimesheetId || current.DeletedAt != nil {
		return TimeEntry{}, ErrEntryNotFound
	}
	e.CreatedAt = current.CreatedAt
	r.entries[e.Id] = e
	return e, nil
}

func (r *RepositoryStub) SoftDeleteEntries(_ context.Context, timesheetId int, entryIds []int, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	selected := make(map[int]bool, len(entryIds))
	for _, id := range entryIds {
		selected[id] = true
	}
	count := 0
	for id, e := range r.entries {
		if e.TimesheetId != timesheetId || e.DeletedAt != nil {
			continue
		}
		if len(entryIds) > 0 && !selected[id] {
			continue
		}
		deletedAt := at
		e.DeletedAt = &deletedAt
		e.UpdatedAt = at
		r.entries[id] = e
		count++
	}
	return count, nil
}

func (r *RepositoryStub) RecomputeTotalHours(_ context.Context, timesheetId int, at time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.timesheets[timesheetId]
	if !ok {
		return decimal.Zero, ErrTimesheetNotFound
	}
	ts.TotalHours = sumHours(r.liveEntries(timesheetId))
	ts.UpdatedAt = at
	r.timesheets[timesheetId] = ts
	return ts.TotalHours, nil
}
