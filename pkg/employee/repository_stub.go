package employee

import (
	"context"
	"sort"
	"sync"

	"github.com/hourline/hourline/pkg/actor"
)

type DirectoryStub struct {
	mu        sync.RWMutex
	employees map[int]Employee
}

func NewDirectoryStub() *DirectoryStub {
	return &DirectoryStub{employees: make(map[int]Employee)}
}

func (d *DirectoryStub) Add(e Employee) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[e.Id] = e
}

func (d *DirectoryStub) Get(_ context.Context, id int) (Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.employees[id]
	if !ok {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, nil
}

func (d *DirectoryStub) Manages(_ context.Context, managerId int, employeeId int) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.employees[employeeId]
	if !ok || e.ManagerId == nil {
		return false, nil
	}
	return *e.ManagerId == managerId, nil
}

func (d *DirectoryStub) ListByRole(_ context.Context, role actor.Role) ([]Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []Employee
	for _, e := range d.employees {
		if e.Role == role && e.Active {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result, nil
}

func (d *DirectoryStub) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees = make(map[int]Employee)
}
