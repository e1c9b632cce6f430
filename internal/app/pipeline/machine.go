package pipeline

import (
	"fmt"
	"github.com/beldeveloper/release-promoter/internal/app/errtype"
	"time"
)

// Transition is a single entry of the audit trail.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"timestamp"`
}

// Option customizes the machine.
type Option func(m *Machine)

// WithClock replaces the wall clock used for the history timestamps and the approval timeout.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// Machine drives a single release candidate through the promotion stages.
// It performs no I/O; callers must serialize access to one instance.
type Machine struct {
	ctx     Context
	policy  Policy
	state   State
	history []Transition
	now     func() time.Time
}

// New wraps the context into a machine at the pending state.
func New(c Context, p Policy, opts ...Option) (*Machine, error) {
	return Restore(c, StatePending, nil, p, opts...)
}

// Restore rebuilds a machine from a persisted record.
func Restore(c Context, s State, history []Transition, p Policy, opts ...Option) (*Machine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !s.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", errtype.ErrInvalidContext, s)
	}
	m := &Machine{
		ctx:     c.clone(),
		policy:  p,
		state:   s,
		history: append([]Transition(nil), history...),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	m.trimHistory()
	return m, nil
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Context returns a copy of the wrapped context.
func (m *Machine) Context() Context {
	return m.ctx.clone()
}

// Policy returns the thresholds the machine was built with.
func (m *Machine) Policy() Policy {
	return m.policy
}

// History returns a copy of the retained audit trail.
func (m *Machine) History() []Transition {
	return append([]Transition(nil), m.history...)
}

// LastTransition returns the most recent history entry.
func (m *Machine) LastTransition() (Transition, bool) {
	if len(m.history) == 0 {
		return Transition{}, false
	}
	return m.history[len(m.history)-1], true
}

// Advance commits exactly one transition and returns the resulting state.
// Absorbing states and the paused rollout are no-ops.
func (m *Machine) Advance() State {
	prev := m.state
	next := m.next()
	if next != prev {
		m.record(prev, next)
	}
	return m.state
}

// Cancel abandons the release. Only the stages before the rollout and the paused rollout can be cancelled.
func (m *Machine) Cancel() error {
	switch m.state {
	case StatePending, StateValidating, StateValidationFailed, StateBuilding, StateBuildFailed,
		StateTesting, StateAwaitingApproval, StateRolloutPaused:
		m.record(m.state, StateCancelled)
		return nil
	}
	return fmt.Errorf("%w: cannot cancel deployment in state %s", errtype.ErrInvalidOperation, m.state)
}

// ForceRollback starts restoring the previous version.
func (m *Machine) ForceRollback() error {
	switch m.state {
	case StatePending, StateCancelled, StateRolledBack:
		return fmt.Errorf("%w: cannot rollback from state %s", errtype.ErrInvalidOperation, m.state)
	case StateRollingBack:
		return nil
	}
	m.record(m.state, StateRollingBack)
	return nil
}

// Resume continues the paused rollout on the operator request.
func (m *Machine) Resume() error {
	if m.state != StateRolloutPaused {
		return fmt.Errorf("%w: cannot resume deployment in state %s", errtype.ErrInvalidOperation, m.state)
	}
	m.record(m.state, StateRollingOut)
	return nil
}

// RecordApproval counts one more approval.
func (m *Machine) RecordApproval() {
	m.ctx.ApprovalCount++
}

// SetApprovalCount replaces the approvals counter with the value reported by the approval system.
func (m *Machine) SetApprovalCount(n int) error {
	if n < 0 {
		return invalidContext("approval_count %d is negative", n)
	}
	m.ctx.ApprovalCount = n
	return nil
}

// ReportCanary stores the latest canary telemetry.
func (m *Machine) ReportCanary(errorRate, latencyP99 float64) error {
	if !nonNegative(errorRate) {
		return invalidContext("canary_error_rate %v is negative", errorRate)
	}
	if !nonNegative(latencyP99) {
		return invalidContext("canary_latency_p99 %v is negative", latencyP99)
	}
	m.ctx.CanaryErrorRate = errorRate
	m.ctx.CanaryLatencyP99 = latencyP99
	return nil
}

func (m *Machine) record(from, to State) {
	m.state = to
	at := m.now()
	switch to {
	case StateAwaitingApproval:
		if m.ctx.StartedAt == nil {
			m.ctx.StartedAt = &at
		}
	case StateRolledBack:
		m.ctx.RolloutPercentage = 0
	}
	m.history = append(m.history, Transition{From: from, To: to, At: at})
	m.trimHistory()
}

func (m *Machine) trimHistory() {
	limit := m.policy.HistoryLimit
	if limit <= 0 || len(m.history) <= limit {
		return
	}
	m.history = append([]Transition(nil), m.history[len(m.history)-limit:]...)
}
