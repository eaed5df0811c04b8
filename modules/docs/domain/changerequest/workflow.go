package changerequest

import (
	"errors"
	"fmt"
)

// Workflow status labels as exposed on the wire and stored in the database.
// Labels are derived from State, never written independently.
const (
	StatusDraft            = "borrador"
	StatusPendingReview    = "pendiente_revision"
	StatusInReview         = "en_revision"
	StatusApproved         = "aprobado"
	StatusInImplementation = "en_implementacion"
	StatusPublished        = "publicado"
	StatusRejected         = "rechazado"
)

type Phase int

const (
	PhaseDraft Phase = iota
	PhaseInFlight
	PhaseApproved
	PhaseInImplementation
	PhasePublished
	PhaseRejected
)

var ErrInvalidTransition = errors.New("invalid workflow transition")

// State is the single source of truth for a request's position in the
// workflow: a phase plus, while in flight, the 2..5 step counter. Rejection
// keeps the step at which it happened for the audit trail.
type State struct {
	phase Phase
	step  int
}

func Draft() State {
	return State{phase: PhaseDraft, step: 1}
}

func InFlight(step int) (State, error) {
	if step < 2 || step > TotalSteps {
		return State{}, fmt.Errorf("in-flight step must be 2..%d, got %d", TotalSteps, step)
	}
	return State{phase: PhaseInFlight, step: step}, nil
}

func (s State) Phase() Phase { return s.phase }

// Step returns the current position in the approval chain. Draft reports 1
// (the submission step); terminal phases report the step they froze at.
func (s State) Step() int {
	if s.step == 0 {
		return 1
	}
	return s.step
}

func (s State) IsDraft() bool { return s.phase == PhaseDraft }

func (s State) IsTerminal() bool {
	return s.phase == PhaseRejected || s.phase == PhasePublished
}

// Status derives the stored/wire label. The step-to-label boundary (step 2
// reads pendiente_revision, later steps en_revision) lives only here.
func (s State) Status() string {
	switch s.phase {
	case PhaseDraft:
		return StatusDraft
	case PhaseInFlight:
		if s.step <= 2 {
			return StatusPendingReview
		}
		return StatusInReview
	case PhaseApproved:
		return StatusApproved
	case PhaseInImplementation:
		return StatusInImplementation
	case PhasePublished:
		return StatusPublished
	case PhaseRejected:
		return StatusRejected
	}
	return StatusDraft
}

// ParseState rebuilds a State from its stored representation.
func ParseState(status string, step int) (State, error) {
	switch status {
	case StatusDraft:
		return Draft(), nil
	case StatusPendingReview, StatusInReview:
		return InFlight(step)
	case StatusApproved:
		return State{phase: PhaseApproved, step: TotalSteps}, nil
	case StatusInImplementation:
		return State{phase: PhaseInImplementation, step: TotalSteps}, nil
	case StatusPublished:
		return State{phase: PhasePublished, step: TotalSteps}, nil
	case StatusRejected:
		return State{phase: PhaseRejected, step: step}, nil
	}
	return State{}, fmt.Errorf("unknown workflow status %q", status)
}

// Submit moves a draft into the approval chain at step 2. Submission itself
// is step 1, so the first reviewer decision is always step 2.
func (s State) Submit() (State, error) {
	if s.phase != PhaseDraft {
		return State{}, fmt.Errorf("%w: submit requires %s, current %s", ErrInvalidTransition, StatusDraft, s.Status())
	}
	return State{phase: PhaseInFlight, step: 2}, nil
}

// Advance records an accepted approval at the current step. Accepting the
// final step leaves the chain and lands in aprobado.
func (s State) Advance() (State, error) {
	if s.phase != PhaseInFlight {
		return State{}, fmt.Errorf("%w: approve requires an in-flight request, current %s", ErrInvalidTransition, s.Status())
	}
	if s.step >= TotalSteps {
		return State{phase: PhaseApproved, step: TotalSteps}, nil
	}
	return State{phase: PhaseInFlight, step: s.step + 1}, nil
}

// Reject terminates the workflow at the current step. There is no path back:
// a retried change starts a fresh request.
func (s State) Reject() (State, error) {
	if s.phase != PhaseInFlight && s.phase != PhaseApproved {
		return State{}, fmt.Errorf("%w: reject requires an in-flight or approved request, current %s", ErrInvalidTransition, s.Status())
	}
	return State{phase: PhaseRejected, step: s.step}, nil
}

func (s State) BeginImplementation() (State, error) {
	if s.phase != PhaseApproved {
		return State{}, fmt.Errorf("%w: implementation requires %s, current %s", ErrInvalidTransition, StatusApproved, s.Status())
	}
	return State{phase: PhaseInImplementation, step: TotalSteps}, nil
}

func (s State) Publish() (State, error) {
	if s.phase != PhaseInImplementation {
		return State{}, fmt.Errorf("%w: publish requires %s, current %s", ErrInvalidTransition, StatusInImplementation, s.Status())
	}
	return State{phase: PhasePublished, step: TotalSteps}, nil
}
