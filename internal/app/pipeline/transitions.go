package pipeline

import "fmt"

// next decides the following state. It mutates only the engine-owned counters.
func (m *Machine) next() State {
	switch m.state {
	case StatePending:
		return StateValidating
	case StateValidating:
		return m.validate()
	case StateValidationFailed:
		return m.retry(StateValidating)
	case StateBuilding:
		return m.build()
	case StateBuildFailed:
		return m.retry(StateBuilding)
	case StateTesting:
		return m.runTests()
	case StateTestFailed:
		return StateCancelled
	case StateAwaitingApproval:
		return m.checkApproval()
	case StateRejected:
		return StateCancelled
	case StateApproved:
		return m.deploymentStrategy()
	case StateDeployingCanary:
		return StateCanaryMonitoring
	case StateCanaryMonitoring:
		return m.evaluateCanary()
	case StateCanaryFailed:
		return StateRollingBack
	case StateRollingOut:
		return m.rolloutProgress()
	case StateRolloutPaused:
		// resumed only by the operator
		return StateRolloutPaused
	case StateRollingBack:
		return StateRolledBack
	case StateDeployed, StateRolledBack, StateCancelled:
		return m.state
	}
	panic(fmt.Sprintf("pipeline: unhandled state %q", m.state))
}

func (m *Machine) validate() State {
	c, p := m.ctx, m.policy
	switch c.Environment {
	case EnvProduction:
		if c.RequiresMigration && !c.IsHotfix && c.TestCoverage < p.ProductionMigrationMinCoverage {
			return StateValidationFailed
		}
		if c.TestCoverage < p.ProductionMinCoverage {
			return StateValidationFailed
		}
	case EnvStaging:
		if c.TestCoverage < p.StagingMinCoverage {
			return StateValidationFailed
		}
	}
	return StateBuilding
}

// retry shares one counter between the validation and the build failures.
func (m *Machine) retry(target State) State {
	if m.ctx.RetryCount < m.ctx.MaxRetries {
		m.ctx.RetryCount++
		return target
	}
	return StateCancelled
}

func (m *Machine) build() State {
	if m.ctx.CommitSHA == "" {
		return StateBuildFailed
	}
	return StateTesting
}

func (m *Machine) runTests() State {
	c := m.ctx
	if c.Environment == EnvProduction && c.TestCoverage < m.policy.ProductionTestMinCoverage {
		return StateTestFailed
	}
	if c.IsHotfix && c.Environment == EnvStaging {
		return StateApproved
	}
	return StateAwaitingApproval
}

func (m *Machine) checkApproval() State {
	if m.ctx.ApprovalCount >= m.policy.Quorum(m.ctx) {
		return StateApproved
	}
	now := m.now()
	if m.ctx.StartedAt == nil {
		// restored records may miss the start of the approval window
		m.ctx.StartedAt = &now
	}
	if now.Sub(*m.ctx.StartedAt) > m.policy.ApprovalTimeout {
		return StateRejected
	}
	return StateAwaitingApproval
}

// deploymentStrategy sends production releases through the canary unless they are hotfixes.
func (m *Machine) deploymentStrategy() State {
	if m.ctx.Environment == EnvStaging || m.ctx.IsHotfix {
		return StateRollingOut
	}
	return StateDeployingCanary
}

// evaluateCanary checks the error rate before the latency.
func (m *Machine) evaluateCanary() State {
	c, p := m.ctx, m.policy
	if c.CanaryErrorRate > p.CanaryMaxErrorRate {
		return StateCanaryFailed
	}
	if c.CanaryLatencyP99 > p.CanaryMaxLatencyP99 {
		if c.CanaryLatencyP99 > p.CanaryFailLatencyP99 {
			return StateCanaryFailed
		}
		return StateRolloutPaused
	}
	return StateRollingOut
}

func (m *Machine) rolloutProgress() State {
	if m.ctx.RolloutPercentage >= 100 {
		return StateDeployed
	}
	if m.ctx.CanaryErrorRate > m.policy.RolloutMaxErrorRate {
		return StateRollingBack
	}
	m.ctx.RolloutPercentage = m.policy.nextRolloutStep(m.ctx.RolloutPercentage)
	return StateRollingOut
}
