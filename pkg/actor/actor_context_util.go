package actor

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

type contextKey string

const ActorKey contextKey = "actor"

var ErrNoActor = errors.New("actor not found in context")

func Current(ctx context.Context) (Actor, error) {
	a, ok := ctx.Value(ActorKey).(Actor)
	if !ok {
		log.Trace("actor not found in context")
		return Actor{}, ErrNoActor
	}
	return a, nil
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ActorKey, a)
}
