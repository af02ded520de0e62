package project

import (
	"context"
	"sync"
)

type DirectoryStub struct {
	mu       sync.RWMutex
	projects map[int]Project
	members  map[int]map[int]bool // projectId -> userId -> active
}

func NewDirectoryStub() *DirectoryStub {
	return &DirectoryStub{
		projects: make(map[int]Project),
		members:  make(map[int]map[int]bool),
	}
}

func (d *DirectoryStub) Add(p Project, activeMemberIds ...int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.projects[p.Id] = p
	if d.members[p.Id] == nil {
		d.members[p.Id] = make(map[int]bool)
	}
	for _, id := range activeMemberIds {
		d.members[p.Id][id] = true
	}
}

func (d *DirectoryStub) Get(_ context.Context, id int) (Project, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.projects[id]
	if !ok {
		return Project{}, ErrProjectNotFound
	}
	return p, nil
}

func (d *DirectoryStub) IsActiveMember(_ context.Context, projectId int, userId int) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.members[projectId][userId], nil
}
