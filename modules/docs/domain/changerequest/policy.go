package changerequest

// Roles recognized by the approval chain. The upstream auth layer asserts the
// caller's role; this table decides what that role may do at each step.
const (
	RoleAdmin       = "admin"
	RoleSeniorTech  = "tecnico_senior"
	RoleQuality     = "calidad"
	RoleDeptHead    = "jefe_departamento"
	RoleCoordinator = "coordinador_administrativo"
)

type Action string

const (
	ActionEdit      Action = "edit"
	ActionSubmit    Action = "submit"
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionImplement Action = "implement"
	ActionPublish   Action = "publish"
)

// fullAccessRoles may decide at every step and drive the post-approval
// implementation/publication transitions.
var fullAccessRoles = map[string]struct{}{
	RoleAdmin:      {},
	RoleSeniorTech: {},
}

// stepRoles is the authoritative step-to-role table. Step 1 is submission
// and is gated on requester identity, not on a role.
var stepRoles = map[int]string{
	2: RoleQuality,
	3: RoleDeptHead,
	4: RoleCoordinator,
	5: RoleQuality,
}

func IsFullAccessRole(role string) bool {
	_, ok := fullAccessRoles[role]
	return ok
}

// RoleForStep returns the step-specific reviewer role for steps 2..5.
func RoleForStep(step int) (string, bool) {
	role, ok := stepRoles[step]
	return role, ok
}

// CanAct is the single authoritative policy decision: may an actor with the
// given role perform action on the request in its current state. It is pure;
// requester-identity checks (edit/submit/delete are requester-only) are a
// separate identity comparison made by the engine, since identity is not a
// role attribute.
func CanAct(role string, action Action, cr *ChangeRequest) bool {
	state := cr.State

	switch action {
	case ActionEdit, ActionSubmit:
		// Role places no extra constraint; the engine enforces
		// caller == requester and draft-only.
		return state.IsDraft()

	case ActionApprove:
		if state.Phase() != PhaseInFlight {
			return false
		}
		return roleMayDecide(role, state.Step())

	case ActionReject:
		if state.Phase() != PhaseInFlight && state.Phase() != PhaseApproved {
			return false
		}
		return roleMayDecide(role, state.Step())

	case ActionImplement:
		return state.Phase() == PhaseApproved && IsFullAccessRole(role)

	case ActionPublish:
		return state.Phase() == PhaseInImplementation && IsFullAccessRole(role)
	}
	return false
}

func roleMayDecide(role string, step int) bool {
	if IsFullAccessRole(role) {
		return true
	}
	required, ok := stepRoles[step]
	return ok && role == required
}
