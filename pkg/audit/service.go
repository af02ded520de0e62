package audit

import (
	"context"

	"github.com/hourline/hourline/pkg/actor"
	"github.com/hourline/hourline/pkg/apperror"
)

// Service is the read-only query boundary used by audit viewers.
type Service interface {
	Query(ctx context.Context, filter Filter) ([]Record, error)
}

type ServiceImpl struct {
	repo Repository
}

func NewService(repo Repository) *ServiceImpl {
	return &ServiceImpl{repo: repo}
}

func (s *ServiceImpl) Query(ctx context.Context, filter Filter) ([]Record, error) {
	current, err := actor.Current(ctx)
	if err != nil {
		return nil, apperror.Forbidden("no authenticated actor")
	}
	// everybody may read their own trail, the full trail is reserved for management
	if filter.ActorId != current.Id {
		if decision := actor.Decide(current.Role, actor.Unrelated, actor.ActionViewAudit); !decision.Allowed {
			return nil, apperror.Forbidden("%s", decision.Reason)
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, apperror.Validation("invalid time range: to must not be before from")
	}
	return s.repo.Find(ctx, filter)
}
