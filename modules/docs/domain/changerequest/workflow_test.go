package changerequest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/docflow/modules/docs/domain/changerequest"
)

func TestState_SubmitFromDraft(t *testing.T) {
	t.Parallel()

	next, err := changerequest.Draft().Submit()
	require.NoError(t, err)
	assert.Equal(t, 2, next.Step())
	assert.Equal(t, changerequest.StatusPendingReview, next.Status())
}

func TestState_SubmitOnlyFromDraft(t *testing.T) {
	t.Parallel()

	inFlight, err := changerequest.InFlight(3)
	require.NoError(t, err)

	_, err = inFlight.Submit()
	assert.ErrorIs(t, err, changerequest.ErrInvalidTransition)
}

func TestState_AdvanceWalksAllStepsThenApproves(t *testing.T) {
	t.Parallel()

	state, err := changerequest.Draft().Submit()
	require.NoError(t, err)

	// Steps 2,3,4 stay in flight; step counter grows by exactly 1 each time.
	for expected := 3; expected <= changerequest.TotalSteps; expected++ {
		state, err = state.Advance()
		require.NoError(t, err)
		assert.Equal(t, expected, state.Step())
	}
	assert.Equal(t, changerequest.StatusInReview, state.Status())

	state, err = state.Advance()
	require.NoError(t, err)
	assert.Equal(t, changerequest.StatusApproved, state.Status())
	assert.Equal(t, changerequest.TotalSteps, state.Step())
}

func TestState_StepNeverExceedsTotal(t *testing.T) {
	t.Parallel()

	approved, err := changerequest.ParseState(changerequest.StatusApproved, changerequest.TotalSteps)
	require.NoError(t, err)

	_, err = approved.Advance()
	assert.ErrorIs(t, err, changerequest.ErrInvalidTransition)
}

func TestState_StatusLabelBoundary(t *testing.T) {
	t.Parallel()

	cases := []struct {
		step  int
		label string
	}{
		{2, changerequest.StatusPendingReview},
		{3, changerequest.StatusInReview},
		{4, changerequest.StatusInReview},
		{5, changerequest.StatusInReview},
	}
	for _, tc := range cases {
		state, err := changerequest.InFlight(tc.step)
		require.NoError(t, err)
		assert.Equal(t, tc.label, state.Status(), "step %d", tc.step)
	}
}

func TestState_RejectIsTerminalAndKeepsStep(t *testing.T) {
	t.Parallel()

	state, err := changerequest.InFlight(4)
	require.NoError(t, err)

	rejected, err := state.Reject()
	require.NoError(t, err)
	assert.Equal(t, changerequest.StatusRejected, rejected.Status())
	assert.Equal(t, 4, rejected.Step())
	assert.True(t, rejected.IsTerminal())

	_, err = rejected.Advance()
	assert.ErrorIs(t, err, changerequest.ErrInvalidTransition)
	_, err = rejected.Reject()
	assert.ErrorIs(t, err, changerequest.ErrInvalidTransition)
	_, err = rejected.Submit()
	assert.ErrorIs(t, err, changerequest.ErrInvalidTransition)
}

func TestState_RejectAllowedFromApproved(t *testing.T) {
	t.Parallel()

	approved, err := changerequest.ParseState(changerequest.StatusApproved, changerequest.TotalSteps)
	require.NoError(t, err)

	rejected, err := approved.Reject()
	require.NoError(t, err)
	assert.Equal(t, changerequest.StatusRejected, rejected.Status())
}

func TestState_ImplementationAndPublication(t *testing.T) {
	t.Parallel()

	approved, err := changerequest.ParseState(changerequest.StatusApproved, changerequest.TotalSteps)
	require.NoError(t, err)

	inImpl, err := approved.BeginImplementation()
	require.NoError(t, err)
	assert.Equal(t, changerequest.StatusInImplementation, inImpl.Status())

	published, err := inImpl.Publish()
	require.NoError(t, err)
	assert.Equal(t, changerequest.StatusPublished, published.Status())
	assert.True(t, published.IsTerminal())

	// Publication is terminal in both directions.
	_, err = published.Reject()
	assert.ErrorIs(t, err, changerequest.ErrInvalidTransition)
	_, err = published.Advance()
	assert.ErrorIs(t, err, changerequest.ErrInvalidTransition)
}

func TestState_PublishRequiresImplementation(t *testing.T) {
	t.Parallel()

	approved, err := changerequest.ParseState(changerequest.StatusApproved, changerequest.TotalSteps)
	require.NoError(t, err)

	_, err = approved.Publish()
	assert.ErrorIs(t, err, changerequest.ErrInvalidTransition)
}

func TestParseState_RoundTrip(t *testing.T) {
	t.Parallel()

	states := []changerequest.State{changerequest.Draft()}
	for step := 2; step <= changerequest.TotalSteps; step++ {
		s, err := changerequest.InFlight(step)
		require.NoError(t, err)
		states = append(states, s)
	}

	for _, s := range states {
		parsed, err := changerequest.ParseState(s.Status(), s.Step())
		require.NoError(t, err)
		assert.Equal(t, s.Status(), parsed.Status())
		assert.Equal(t, s.Step(), parsed.Step())
	}

	_, err := changerequest.ParseState("archived", 1)
	assert.Error(t, err)
}

func TestInFlight_RejectsOutOfRangeSteps(t *testing.T) {
	t.Parallel()

	for _, step := range []int{0, 1, 6} {
		_, err := changerequest.InFlight(step)
		assert.Error(t, err, "step %d", step)
	}
}
