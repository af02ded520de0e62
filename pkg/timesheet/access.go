package timesheet

import (
	"context"
	"fmt"

	"github.com/hourline/hourline/pkg/actor"
	"github.com/hourline/hourline/pkg/apperror"
	"github.com/hourline/hourline/pkg/employee"
)

type access struct {
	employees employee.Directory
}

func (a access) ownership(ctx context.Context, current actor.Actor, ownerId int) (actor.Ownership, error) {
	if current.Id == ownerId {
		return actor.Owner, nil
	}
	manages, err := a.employees.Manages(ctx, current.Id, ownerId)
	if err != nil {
		return actor.Unrelated, fmt.Errorf("failed to resolve manager relation: %w", err)
	}
	if manages {
		return actor.ManagerOfOwner, nil
	}
	return actor.Unrelated, nil
}

// authorize runs the permission policy for current acting on a timesheet owned by ownerId.
func (a access) authorize(ctx context.Context, current actor.Actor, ownerId int, action actor.Action) error {
	ownership, err := a.ownership(ctx, current, ownerId)
	if err != nil {
		return err
	}
	if decision := actor.Decide(current.Role, ownership, action); !decision.Allowed {
		return apperror.Forbidden("%s", decision.Reason)
	}
	return nil
}

func currentActor(ctx context.Context) (actor.Actor, error) {
	current, err := actor.Current(ctx)
	if err != nil {
		return actor.Actor{}, apperror.Forbidden("no authenticated actor")
	}
	return current, nil
}

func notFound(id int) error {
	return apperror.NotFound("timesheet %d not found", id)
}
