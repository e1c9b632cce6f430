package pipeline

import (
	"fmt"
	"github.com/beldeveloper/release-promoter/internal/app/errtype"
)

// State is a stage of the release promotion.
type State string

const (
	// StatePending defines the state of a freshly submitted release candidate.
	StatePending State = "pending"
	// StateValidating defines the state when the deployability checks are evaluated.
	StateValidating State = "validating"
	// StateValidationFailed defines the state when the deployability checks did not pass.
	StateValidationFailed State = "validation_failed"
	// StateBuilding defines the state when the release artifact is being built.
	StateBuilding State = "building"
	// StateBuildFailed defines the state when the build attempt failed.
	StateBuildFailed State = "build_failed"
	// StateTesting defines the state when the test results are evaluated.
	StateTesting State = "testing"
	// StateTestFailed defines the state when the tests did not pass.
	StateTestFailed State = "test_failed"
	// StateAwaitingApproval defines the state when the release waits for the approvals quorum.
	StateAwaitingApproval State = "awaiting_approval"
	// StateApproved defines the state when the release has the quorum and the strategy is being decided.
	StateApproved State = "approved"
	// StateRejected defines the state when the approval window elapsed without the quorum.
	StateRejected State = "rejected"
	// StateDeployingCanary defines the state when the canary instances are being deployed.
	StateDeployingCanary State = "deploying_canary"
	// StateCanaryMonitoring defines the state when the canary telemetry is evaluated.
	StateCanaryMonitoring State = "canary_monitoring"
	// StateCanaryFailed defines the state when the canary telemetry is beyond the thresholds.
	StateCanaryFailed State = "canary_failed"
	// StateRollingOut defines the state when the release is progressively rolled out.
	StateRollingOut State = "rolling_out"
	// StateRolloutPaused defines the state when the rollout waits for an operator decision.
	StateRolloutPaused State = "rollout_paused"
	// StateDeployed defines the terminal success state.
	StateDeployed State = "deployed"
	// StateRollingBack defines the state when the previous version is being restored.
	StateRollingBack State = "rolling_back"
	// StateRolledBack defines the terminal state after a completed rollback.
	StateRolledBack State = "rolled_back"
	// StateCancelled defines the terminal state of an abandoned release.
	StateCancelled State = "cancelled"
)

var allStates = []State{
	StatePending,
	StateValidating,
	StateValidationFailed,
	StateBuilding,
	StateBuildFailed,
	StateTesting,
	StateTestFailed,
	StateAwaitingApproval,
	StateApproved,
	StateRejected,
	StateDeployingCanary,
	StateCanaryMonitoring,
	StateCanaryFailed,
	StateRollingOut,
	StateRolloutPaused,
	StateDeployed,
	StateRollingBack,
	StateRolledBack,
	StateCancelled,
}

// States returns every known state in the declaration order.
func States() []State {
	res := make([]State, len(allStates))
	copy(res, allStates)
	return res
}

// Valid reports whether the state belongs to the known set.
func (s State) Valid() bool {
	for _, known := range allStates {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the state is absorbing.
func (s State) Terminal() bool {
	switch s {
	case StateDeployed, StateRolledBack, StateCancelled:
		return true
	}
	return false
}

// ParseState converts the stored identifier to a state.
func ParseState(v string) (State, error) {
	s := State(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown state %q", errtype.ErrBadInput, v)
	}
	return s, nil
}

// TerminalStates returns the absorbing states.
func TerminalStates() []State {
	return []State{StateDeployed, StateRolledBack, StateCancelled}
}
