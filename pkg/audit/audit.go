package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityTimesheet       EntityType = "timesheet"
	EntityTimeEntry       EntityType = "time_entry"
	EntityProjectApproval EntityType = "project_approval"
)

type Action string

// Record is one immutable line of the audit trail.
type Record struct {
	Id          uuid.UUID
	EntityType  EntityType
	EntityId    int
	Action      Action
	ActorId     int
	ActorName   string
	Context     map[string]any
	SideEffects []string
	Before      json.RawMessage
	After       json.RawMessage
	CreatedAt   time.Time
}

// Filter narrows an audit query. Zero values are ignored.
type Filter struct {
	EntityType EntityType
	EntityId   int
	ActorId    int
	From       time.Time
	To         time.Time
	Limit      int
}

const defaultLimit = 100
const maxLimit = 1000

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return defaultLimit
	}
	if f.Limit > maxLimit {
		return maxLimit
	}
	return f.Limit
}
