package changerequest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/docflow/modules/docs/domain/changerequest"
)

func inFlightRequest(t *testing.T, step int) *changerequest.ChangeRequest {
	t.Helper()
	state, err := changerequest.InFlight(step)
	require.NoError(t, err)
	return &changerequest.ChangeRequest{State: state}
}

func TestCanAct_StepRoleTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		step int
		role string
	}{
		{2, changerequest.RoleQuality},
		{3, changerequest.RoleDeptHead},
		{4, changerequest.RoleCoordinator},
		{5, changerequest.RoleQuality},
	}
	allRoles := []string{
		changerequest.RoleQuality,
		changerequest.RoleDeptHead,
		changerequest.RoleCoordinator,
	}

	for _, tc := range cases {
		cr := inFlightRequest(t, tc.step)
		for _, role := range allRoles {
			got := changerequest.CanAct(role, changerequest.ActionApprove, cr)
			assert.Equal(t, role == tc.role, got, "step %d role %s", tc.step, role)

			got = changerequest.CanAct(role, changerequest.ActionReject, cr)
			assert.Equal(t, role == tc.role, got, "step %d role %s reject", tc.step, role)
		}
	}
}

func TestCanAct_FullAccessRolesDecideEveryStep(t *testing.T) {
	t.Parallel()

	for _, role := range []string{changerequest.RoleAdmin, changerequest.RoleSeniorTech} {
		for step := 2; step <= changerequest.TotalSteps; step++ {
			cr := inFlightRequest(t, step)
			assert.True(t, changerequest.CanAct(role, changerequest.ActionApprove, cr), "%s step %d", role, step)
			assert.True(t, changerequest.CanAct(role, changerequest.ActionReject, cr), "%s step %d", role, step)
		}
	}
}

func TestCanAct_UnknownRoleAlwaysDenied(t *testing.T) {
	t.Parallel()

	for step := 2; step <= changerequest.TotalSteps; step++ {
		cr := inFlightRequest(t, step)
		assert.False(t, changerequest.CanAct("becario", changerequest.ActionApprove, cr))
		assert.False(t, changerequest.CanAct("", changerequest.ActionReject, cr))
	}
}

func TestCanAct_TerminalStatesDenyEverything(t *testing.T) {
	t.Parallel()

	rejected, err := changerequest.ParseState(changerequest.StatusRejected, 3)
	require.NoError(t, err)
	published, err := changerequest.ParseState(changerequest.StatusPublished, changerequest.TotalSteps)
	require.NoError(t, err)

	for _, state := range []changerequest.State{rejected, published} {
		cr := &changerequest.ChangeRequest{State: state}
		for _, action := range []changerequest.Action{
			changerequest.ActionApprove,
			changerequest.ActionReject,
			changerequest.ActionEdit,
			changerequest.ActionSubmit,
			changerequest.ActionImplement,
			changerequest.ActionPublish,
		} {
			assert.False(t, changerequest.CanAct(changerequest.RoleAdmin, action, cr),
				"state %s action %s", state.Status(), action)
		}
	}
}

func TestCanAct_RejectAllowedFromApprovedForAuthorizedRoles(t *testing.T) {
	t.Parallel()

	approved, err := changerequest.ParseState(changerequest.StatusApproved, changerequest.TotalSteps)
	require.NoError(t, err)
	cr := &changerequest.ChangeRequest{State: approved}

	assert.True(t, changerequest.CanAct(changerequest.RoleAdmin, changerequest.ActionReject, cr))
	assert.True(t, changerequest.CanAct(changerequest.RoleQuality, changerequest.ActionReject, cr))
	assert.False(t, changerequest.CanAct(changerequest.RoleDeptHead, changerequest.ActionReject, cr))

	// Approve is no longer meaningful once the chain is complete.
	assert.False(t, changerequest.CanAct(changerequest.RoleAdmin, changerequest.ActionApprove, cr))
}

func TestCanAct_ImplementAndPublishAreFullAccessOnly(t *testing.T) {
	t.Parallel()

	approved, err := changerequest.ParseState(changerequest.StatusApproved, changerequest.TotalSteps)
	require.NoError(t, err)
	inImpl, err := changerequest.ParseState(changerequest.StatusInImplementation, changerequest.TotalSteps)
	require.NoError(t, err)

	crApproved := &changerequest.ChangeRequest{State: approved}
	crInImpl := &changerequest.ChangeRequest{State: inImpl}

	assert.True(t, changerequest.CanAct(changerequest.RoleAdmin, changerequest.ActionImplement, crApproved))
	assert.True(t, changerequest.CanAct(changerequest.RoleSeniorTech, changerequest.ActionPublish, crInImpl))
	assert.False(t, changerequest.CanAct(changerequest.RoleQuality, changerequest.ActionImplement, crApproved))
	assert.False(t, changerequest.CanAct(changerequest.RoleCoordinator, changerequest.ActionPublish, crInImpl))

	// Wrong phase denies even full-access roles.
	assert.False(t, changerequest.CanAct(changerequest.RoleAdmin, changerequest.ActionPublish, crApproved))
	assert.False(t, changerequest.CanAct(changerequest.RoleAdmin, changerequest.ActionImplement, crInImpl))
}

func TestCanAct_EditOnlyWhileDraft(t *testing.T) {
	t.Parallel()

	draft := &changerequest.ChangeRequest{State: changerequest.Draft()}
	assert.True(t, changerequest.CanAct(changerequest.RoleQuality, changerequest.ActionEdit, draft))
	assert.True(t, changerequest.CanAct("becario", changerequest.ActionSubmit, draft))

	submitted := inFlightRequest(t, 2)
	assert.False(t, changerequest.CanAct(changerequest.RoleAdmin, changerequest.ActionEdit, submitted))
	assert.False(t, changerequest.CanAct(changerequest.RoleAdmin, changerequest.ActionSubmit, submitted))
}
