package test_utils

import (
	"context"

	"github.com/hourline/hourline/pkg/actor"
)

var (
	Employee   = actor.Actor{Id: 10, Role: actor.RoleEmployee, DisplayName: "Una Employee"}
	Lead       = actor.Actor{Id: 20, Role: actor.RoleLead, DisplayName: "Lee Lead"}
	Manager    = actor.Actor{Id: 30, Role: actor.RoleManager, DisplayName: "Mia Manager"}
	Management = actor.Actor{Id: 40, Role: actor.RoleManagement, DisplayName: "Max Management"}
	SuperAdmin = actor.Actor{Id: 50, Role: actor.RoleSuperAdmin, DisplayName: "Sam Admin"}
)

// As returns a context carrying the given actor.
func As(a actor.Actor) context.Context {
	return actor.WithActor(context.Background(), a)
}
