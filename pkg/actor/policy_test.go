package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_AtLeast(t *testing.T) {
	assert.True(t, RoleSuperAdmin.AtLeast(RoleManagement))
	assert.True(t, RoleManager.AtLeast(RoleManager))
	assert.False(t, RoleLead.AtLeast(RoleManager))
	assert.False(t, Role("intern").AtLeast(RoleEmployee))
	assert.True(t, RoleManagement.IsManagerLevel())
	assert.False(t, RoleLead.IsManagerLevel())
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Manager ")
	require.NoError(t, err)
	assert.Equal(t, RoleManager, role)

	_, err = ParseRole("intern")
	assert.Error(t, err)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		role      Role
		ownership Ownership
		action    Action
		allowed   bool
	}{
		{"owner creates own timesheet", RoleEmployee, Owner, ActionCreateTimesheet, true},
		{"manager creates for managed employee", RoleManager, ManagerOfOwner, ActionCreateTimesheet, true},
		{"lead cannot create for someone else", RoleLead, ManagerOfOwner, ActionCreateTimesheet, false},
		{"unrelated manager cannot create", RoleManager, Unrelated, ActionCreateTimesheet, false},
		{"super admin creates for anyone", RoleSuperAdmin, Unrelated, ActionCreateTimesheet, true},
		{"employee edits own entries", RoleEmployee, Owner, ActionEditEntries, true},
		{"unrelated employee cannot edit", RoleEmployee, Unrelated, ActionEditEntries, false},
		{"only owner submits", RoleManager, ManagerOfOwner, ActionSubmit, false},
		{"owner submits", RoleEmployee, Owner, ActionSubmit, true},
		{"manager reviews someone else", RoleManager, Unrelated, ActionManagerDecision, true},
		{"manager cannot review own", RoleManager, Owner, ActionManagerDecision, false},
		{"lead cannot do manager review", RoleLead, Unrelated, ActionManagerDecision, false},
		{"management can do manager review", RoleManagement, Unrelated, ActionManagerDecision, true},
		{"manager cannot do management review", RoleManager, Unrelated, ActionManagementDecision, false},
		{"management reviews", RoleManagement, Unrelated, ActionManagementDecision, true},
		{"management cannot review own", RoleManagement, Owner, ActionManagementDecision, false},
		{"management soft deletes", RoleManagement, Unrelated, ActionSoftDelete, true},
		{"manager cannot soft delete", RoleManager, Owner, ActionSoftDelete, false},
		{"management cannot hard delete", RoleManagement, Unrelated, ActionHardDelete, false},
		{"super admin hard deletes", RoleSuperAdmin, Unrelated, ActionHardDelete, true},
		{"lead reviews project slice", RoleLead, Unrelated, ActionProjectSliceDecision, true},
		{"lead cannot review own project slice", RoleLead, Owner, ActionProjectSliceDecision, false},
		{"employee cannot review project slice", RoleEmployee, Unrelated, ActionProjectSliceDecision, false},
		{"employee views own", RoleEmployee, Owner, ActionViewTimesheet, true},
		{"employee cannot view others", RoleEmployee, Unrelated, ActionViewTimesheet, false},
		{"unknown role is denied", Role("guest"), Owner, ActionViewTimesheet, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Decide(tt.role, tt.ownership, tt.action)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.NotEmpty(t, decision.Reason)
			}
		})
	}
}

func TestDecide_SelfApprovalReason(t *testing.T) {
	decision := Decide(RoleManager, Owner, ActionManagerDecision)
	assert.Equal(t, "you cannot approve or reject your own timesheet", decision.Reason)
}

func TestCurrent(t *testing.T) {
	_, err := Current(context.Background())
	assert.ErrorIs(t, err, ErrNoActor)

	ctx := WithActor(context.Background(), Actor{Id: 7, Role: RoleLead, DisplayName: "Lee"})
	a, err := Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, a.Id)
	assert.Equal(t, RoleLead, a.Role)
}
