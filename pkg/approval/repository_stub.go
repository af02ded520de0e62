package approval

import (
	"context"
	"sort"
	"sync"
	"time"
)

type pair struct {
	timesheetId int
	projectId   int
}

type RepositoryStub struct {
	mu        sync.RWMutex
	approvals map[int]ProjectApproval
	byPair    map[pair]int
	nextId    int
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		approvals: make(map[int]ProjectApproval),
		byPair:    make(map[pair]int),
		nextId:    1,
	}
}

func (r *RepositoryStub) Get(_ context.Context, id int) (ProjectApproval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.approvals[id]
	if !ok {
		return ProjectApproval{}, ErrApprovalNotFound
	}
	return a, nil
}

func (r *RepositoryStub) ListForTimesheet(_ context.Context, timesheetId int) ([]ProjectApproval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []ProjectApproval
	for _, a := range r.approvals {
		if a.TimesheetId == timesheetId {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProjectId < result[j].ProjectId })
	return result, nil
}

func (r *RepositoryStub) Create(_ context.Context, a ProjectApproval) (ProjectApproval, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pair{timesheetId: a.TimesheetId, projectId: a.ProjectId}
	if _, exists := r.byPair[key]; exists {
		return ProjectApproval{}, false, nil
	}
	a.Id = r.nextId
	r.nextId++
	r.approvals[a.Id] = a
	r.byPair[key] = a.Id
	return a, true, nil
}

func (r *RepositoryStub) Decide(_ context.Context, id int, tier Tier, status Status, reason string, decidedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.approvals[id]
	if !ok || a.statusOf(tier) != StatusPending {
		return ErrAlreadyDecided
	}
	if tier == TierLead {
		a.LeadStatus, a.LeadReason, a.LeadDecidedAt = status, reason, &decidedAt
	} else {
		a.ManagerStatus, a.ManagerReason, a.ManagerDecidedAt = status, reason, &decidedAt
	}
	r.approvals[id] = a
	return nil
}
