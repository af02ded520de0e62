package employee

import "github.com/hourline/hourline/pkg/actor"

// Employee is the directory view of a user: the role they hold and who manages them.
type Employee struct {
	Id          int
	DisplayName string
	Role        actor.Role
	ManagerId   *int
	Active      bool
}
