package timesheet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hourline/hourline/internal/event_bus"
	"github.com/hourline/hourline/internal/test_utils"
	"github.com/hourline/hourline/internal/utils"
	"github.com/hourline/hourline/pkg/actor"
	"github.com/hourline/hourline/pkg/approval"
	"github.com/hourline/hourline/pkg/audit"
	"github.com/hourline/hourline/pkg/employee"
	"github.com/hourline/hourline/pkg/project"
	"github.com/stretchr/testify/require"
)

const (
	projectApollo = 1
	projectGemini = 2
)

type fixture struct {
	repo         *RepositoryStub
	approvalRepo *approval.RepositoryStub
	auditRepo    *audit.RepositoryStub
	employees    *employee.DirectoryStub
	clock        *utils.MockClock
	approvals    *approval.ServiceImpl
	recorder     *audit.RecorderImpl
	bus          *event_bus.EventBus
	lifecycle    *LifecycleServiceImpl
	entries      *EntryServiceImpl

	mu        sync.Mutex
	submitted []event_bus.TimesheetSubmitted
	decided   []event_bus.TimesheetDecided
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:         NewRepositoryStub(),
		approvalRepo: approval.NewRepositoryStub(),
		auditRepo:    audit.NewRepositoryStub(),
		employees:    employee.NewDirectoryStub(),
		clock:        &utils.MockClock{FixedNow: time.Date(2024, 5, 10, 17, 0, 0, 0, time.UTC)},
	}

	managerId := test_utils.Manager.Id
	managementId := test_utils.Management.Id
	for _, a := range []actor.Actor{test_utils.Employee, test_utils.Lead} {
		f.employees.Add(employee.Employee{Id: a.Id, DisplayName: a.DisplayName, Role: a.Role, ManagerId: &managerId, Active: true})
	}
	f.employees.Add(employee.Employee{Id: managerId, DisplayName: test_utils.Manager.DisplayName, Role: actor.RoleManager, ManagerId: &managementId, Active: true})
	f.employees.Add(employee.Employee{Id: managementId, DisplayName: test_utils.Management.DisplayName, Role: actor.RoleManagement, Active: true})
	f.employees.Add(employee.Employee{Id: 41, DisplayName: "Second Management", Role: actor.RoleManagement, Active: true})
	f.employees.Add(employee.Employee{Id: test_utils.SuperAdmin.Id, DisplayName: test_utils.SuperAdmin.DisplayName, Role: actor.RoleSuperAdmin, Active: true})

	leadId := test_utils.Lead.Id
	projects := project.NewDirectoryStub()
	projects.Add(project.Project{Id: projectApollo, Name: "Apollo", LeadId: &leadId, ManagerId: &managerId}, test_utils.Employee.Id)
	projects.Add(project.Project{Id: projectGemini, Name: "Gemini", ManagerId: &managementId})

	f.recorder = audit.NewRecorder(f.auditRepo, f.clock)
	f.bus = event_bus.NewEventBus()
	event_bus.SubscribeTyped(f.bus, event_bus.TimesheetSubmittedEvent, func(e event_bus.EventT[event_bus.TimesheetSubmitted]) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.submitted = append(f.submitted, e.Data)
		return nil
	})
	event_bus.SubscribeTyped(f.bus, event_bus.TimesheetDecidedEvent, func(e event_bus.EventT[event_bus.TimesheetDecided]) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.decided = append(f.decided, e.Data)
		return nil
	})

	f.approvals = approval.NewService(f.approvalRepo, projects, f.recorder, f.clock)
	f.lifecycle = NewLifecycleService(f.repo, f.approvals, f.employees, f.recorder, f.bus, f.clock)
	f.entries = NewEntryService(f.repo, NewValidator(10), f.employees, f.recorder, f.clock)
	return f
}

func (f *fixture) createTimesheet(t *testing.T, owner actor.Actor, week string) Timesheet {
	t.Helper()
	ts, err := f.lifecycle.Create(test_utils.As(owner), owner.Id, day(week))
	require.NoError(t, err)
	return ts
}

func (f *fixture) addEntry(t *testing.T, owner actor.Actor, timesheetId int, entry TimeEntry) TimeEntry {
	t.Helper()
	created, err := f.entries.AddEntry(test_utils.As(owner), timesheetId, entry)
	require.NoError(t, err)
	return created
}

func (f *fixture) reload(t *testing.T, id int) Timesheet {
	t.Helper()
	ts, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return ts
}

func (f *fixture) auditActions(entityType audit.EntityType, entityId int) []audit.Action {
	var actions []audit.Action
	for _, rec := range f.auditRepo.All() {
		if rec.EntityType == entityType && rec.EntityId == entityId {
			actions = append(actions, rec.Action)
		}
	}
	return actions
}

func (f *fixture) submittedEvents() []event_bus.TimesheetSubmitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event_bus.TimesheetSubmitted(nil), f.submitted...)
}

func (f *fixture) decidedEvents() []event_bus.TimesheetDecided {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event_bus.TimesheetDecided(nil), f.decided...)
}
