package actor

// Ownership describes how the acting user relates to the timesheet being acted upon.
type Ownership int

const (
	Unrelated Ownership = iota
	Owner
	ManagerOfOwner
)

type Action string

const (
	ActionCreateTimesheet      Action = "create_timesheet"
	ActionViewTimesheet        Action = "view_timesheet"
	ActionEditEntries          Action = "edit_entries"
	ActionSubmit               Action = "submit"
	ActionManagerDecision      Action = "manager_decision"
	ActionManagementDecision   Action = "management_decision"
	ActionSoftDelete           Action = "soft_delete"
	ActionHardDelete           Action = "hard_delete"
	ActionMarkBilled           Action = "mark_billed"
	ActionViewAudit            Action = "view_audit"
	ActionProjectSliceDecision Action = "project_slice_decision"
)

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Decide is the single permission policy of the service. It only looks at the role, the relation to
// the resource and the requested action; status checks belong to the lifecycle.
func Decide(role Role, ownership Ownership, action Action) Decision {
	if !role.Valid() {
		return deny("unknown role")
	}

	switch action {
	case ActionCreateTimesheet, ActionEditEntries:
		if ownership == Owner || role == RoleSuperAdmin {
			return allow()
		}
		if ownership == ManagerOfOwner && role.IsManagerLevel() {
			return allow()
		}
		return deny("you can only manage your own timesheets or those of employees you manage")

	case ActionViewTimesheet:
		if ownership == Owner || ownership == ManagerOfOwner || role.IsManagerLevel() {
			return allow()
		}
		return deny("you do not have access to this timesheet")

	case ActionSubmit:
		if ownership == Owner {
			return allow()
		}
		return deny("only the timesheet owner can submit it")

	case ActionManagerDecision:
		if ownership == Owner {
			return deny("you cannot approve or reject your own timesheet")
		}
		if role.AtLeast(RoleManager) {
			return allow()
		}
		return deny("manager role or higher is required to review submitted timesheets")

	case ActionManagementDecision:
		if ownership == Owner {
			return deny("you cannot approve or reject your own timesheet")
		}
		if role.AtLeast(RoleManagement) {
			return allow()
		}
		return deny("management role or higher is required for final approval")

	case ActionSoftDelete, ActionMarkBilled, ActionViewAudit:
		if role.AtLeast(RoleManagement) {
			return allow()
		}
		return deny("management role or higher is required")

	case ActionHardDelete:
		if role == RoleSuperAdmin {
			return allow()
		}
		return deny("only a super admin can permanently delete a timesheet")

	case ActionProjectSliceDecision:
		if ownership == Owner {
			return deny("you cannot approve or reject your own timesheet")
		}
		if role.AtLeast(RoleLead) {
			return allow()
		}
		return deny("lead role or higher is required to review a project slice")
	}

	return deny("unknown action")
}
