package pipeline

import (
	"fmt"
	"github.com/beldeveloper/release-promoter/internal/app/errtype"
	"time"
)

// Policy holds the thresholds that drive the transition decisions.
type Policy struct {
	// Coverage required by the validation stage.
	ProductionMigrationMinCoverage float64 `json:"productionMigrationMinCoverage" yaml:"production_migration_min_coverage"`
	ProductionMinCoverage          float64 `json:"productionMinCoverage" yaml:"production_min_coverage"`
	StagingMinCoverage             float64 `json:"stagingMinCoverage" yaml:"staging_min_coverage"`
	// Coverage required by the testing stage in production.
	ProductionTestMinCoverage float64 `json:"productionTestMinCoverage" yaml:"production_test_min_coverage"`

	StagingQuorum             int           `json:"stagingQuorum" yaml:"staging_quorum"`
	ProductionQuorum          int           `json:"productionQuorum" yaml:"production_quorum"`
	ProductionMigrationQuorum int           `json:"productionMigrationQuorum" yaml:"production_migration_quorum"`
	ApprovalTimeout           time.Duration `json:"approvalTimeout" yaml:"approval_timeout"`

	CanaryMaxErrorRate   float64 `json:"canaryMaxErrorRate" yaml:"canary_max_error_rate"`
	CanaryMaxLatencyP99  float64 `json:"canaryMaxLatencyP99" yaml:"canary_max_latency_p99"`
	CanaryFailLatencyP99 float64 `json:"canaryFailLatencyP99" yaml:"canary_fail_latency_p99"`

	RolloutMaxErrorRate float64   `json:"rolloutMaxErrorRate" yaml:"rollout_max_error_rate"`
	RolloutSteps        []float64 `json:"rolloutSteps" yaml:"rollout_steps"`

	// HistoryLimit bounds the in-memory history; 0 keeps every entry.
	HistoryLimit int `json:"historyLimit" yaml:"history_limit"`
}

// DefaultPolicy returns the standard promotion thresholds.
func DefaultPolicy() Policy {
	return Policy{
		ProductionMigrationMinCoverage: 0.8,
		ProductionMinCoverage:          0.6,
		StagingMinCoverage:             0.4,
		ProductionTestMinCoverage:      0.5,
		StagingQuorum:                  1,
		ProductionQuorum:               2,
		ProductionMigrationQuorum:      3,
		ApprovalTimeout:                24 * time.Hour,
		CanaryMaxErrorRate:             0.01,
		CanaryMaxLatencyP99:            500,
		CanaryFailLatencyP99:           1000,
		RolloutMaxErrorRate:            0.05,
		RolloutSteps:                   []float64{25, 50, 100},
	}
}

// Validate checks that the thresholds are consistent.
func (p Policy) Validate() error {
	coverage := []struct {
		name string
		v    float64
	}{
		{"production_migration_min_coverage", p.ProductionMigrationMinCoverage},
		{"production_min_coverage", p.ProductionMinCoverage},
		{"staging_min_coverage", p.StagingMinCoverage},
		{"production_test_min_coverage", p.ProductionTestMinCoverage},
	}
	for _, c := range coverage {
		if !inRange(c.v, 0, 1) {
			return invalidPolicy("%s %v is out of [0, 1]", c.name, c.v)
		}
	}
	if p.StagingQuorum < 1 || p.ProductionQuorum < 1 || p.ProductionMigrationQuorum < 1 {
		return invalidPolicy("quorum must be at least 1")
	}
	if p.ApprovalTimeout <= 0 {
		return invalidPolicy("approval_timeout must be positive")
	}
	if !nonNegative(p.CanaryMaxErrorRate) || !nonNegative(p.RolloutMaxErrorRate) {
		return invalidPolicy("error rate thresholds must be non-negative")
	}
	if !nonNegative(p.CanaryMaxLatencyP99) || p.CanaryFailLatencyP99 < p.CanaryMaxLatencyP99 {
		return invalidPolicy("canary_fail_latency_p99 %v must not be below canary_max_latency_p99 %v",
			p.CanaryFailLatencyP99, p.CanaryMaxLatencyP99)
	}
	if len(p.RolloutSteps) == 0 {
		return invalidPolicy("rollout_steps are required")
	}
	prev := 0.0
	for _, step := range p.RolloutSteps {
		if step <= prev || step > 100 {
			return invalidPolicy("rollout_steps must be strictly increasing within (0, 100]")
		}
		prev = step
	}
	if prev != 100 {
		return invalidPolicy("rollout_steps must end at 100")
	}
	if p.HistoryLimit < 0 {
		return invalidPolicy("history_limit %d is negative", p.HistoryLimit)
	}
	return nil
}

// Quorum returns the number of approvals the context needs.
func (p Policy) Quorum(c Context) int {
	if c.Environment != EnvProduction {
		return p.StagingQuorum
	}
	if c.RequiresMigration {
		return p.ProductionMigrationQuorum
	}
	return p.ProductionQuorum
}

func (p Policy) nextRolloutStep(current float64) float64 {
	for _, step := range p.RolloutSteps {
		if current < step {
			return step
		}
	}
	return 100
}

func invalidPolicy(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errtype.ErrInvalidPolicy, fmt.Sprintf(format, args...))
}
