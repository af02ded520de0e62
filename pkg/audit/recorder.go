package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hourline/hourline/internal/utils"
	"github.com/hourline/hourline/pkg/actor"
	log "github.com/sirupsen/logrus"
)

// Entry is what callers hand to the recorder; Before and After are snapshotted as JSON.
type Entry struct {
	EntityType  EntityType
	EntityId    int
	Action      Action
	Actor       actor.Actor
	Context     map[string]any
	SideEffects []string
	Before      any
	After       any
}

// Recorder writes audit records. Record never fails from the caller's point of view; write errors
// are logged and dropped.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

type RecorderImpl struct {
	repo  Repository
	clock utils.Clock
}

func NewRecorder(repo Repository, clock utils.Clock) *RecorderImpl {
	return &RecorderImpl{repo: repo, clock: clock}
}

func (r *RecorderImpl) Record(ctx context.Context, entry Entry) {
	record := Record{
		Id:          uuid.New(),
		EntityType:  entry.EntityType,
		EntityId:    entry.EntityId,
		Action:      entry.Action,
		ActorId:     entry.Actor.Id,
		ActorName:   entry.Actor.DisplayName,
		Context:     entry.Context,
		SideEffects: entry.SideEffects,
		Before:      snapshot(entry.Before),
		After:       snapshot(entry.After),
		CreatedAt:   r.clock.Now(),
	}
	if err := r.repo.Insert(ctx, record); err != nil {
		log.Errorf("failed to write audit record %s %s/%d: %v", record.Action, record.EntityType, record.EntityId, err)
	}
}

// Track runs op and, only when it succeeds, records one audit line holding before and the value op returned.
func Track[T any](ctx context.Context, recorder Recorder, entry Entry, before T, op func() (T, error)) (T, error) {
	after, err := op()
	if err != nil {
		return after, err
	}
	entry.Before = before
	entry.After = after
	recorder.Record(ctx, entry)
	return after, nil
}

func snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorf("failed to snapshot audit state: %v", err)
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	return data
}
