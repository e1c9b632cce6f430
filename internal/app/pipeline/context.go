package pipeline

import (
	"fmt"
	"github.com/beldeveloper/release-promoter/internal/app/errtype"
	"math"
	"strings"
	"time"
)

// Environment is a deployment target.
type Environment string

const (
	// EnvStaging defines the pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction defines the production environment.
	EnvProduction Environment = "production"
)

// Valid reports whether the environment is known.
func (e Environment) Valid() bool {
	return e == EnvStaging || e == EnvProduction
}

// Context is the record of the release identity, the target environment and the live metrics.
// RetryCount, RolloutPercentage and StartedAt are owned by the Machine once it wraps the context.
type Context struct {
	DeploymentID      string      `json:"deployment_id"`
	ServiceName       string      `json:"service_name"`
	Version           string      `json:"version"`
	Environment       Environment `json:"environment"`
	CommitSHA         string      `json:"commit_sha"`
	Author            string      `json:"author"`
	IsHotfix          bool        `json:"is_hotfix"`
	RequiresMigration bool        `json:"requires_migration"`
	TestCoverage      float64     `json:"test_coverage"`
	CanaryErrorRate   float64     `json:"canary_error_rate"`
	CanaryLatencyP99  float64     `json:"canary_latency_p99"`
	ApprovalCount     int         `json:"approval_count"`
	MaxRetries        int         `json:"max_retries"`
	RetryCount        int         `json:"retry_count"`
	RolloutPercentage float64     `json:"rollout_percentage"`
	PreviousVersion   *string     `json:"previous_version"`
	StartedAt         *time.Time  `json:"started_at"`
}

// Validate checks the range invariants. Values are never clamped.
func (c Context) Validate() error {
	switch {
	case strings.TrimSpace(c.DeploymentID) == "":
		return invalidContext("deployment_id is required")
	case strings.TrimSpace(c.ServiceName) == "":
		return invalidContext("service_name is required")
	case strings.TrimSpace(c.Version) == "":
		return invalidContext("version is required")
	case !c.Environment.Valid():
		return invalidContext("unknown environment %q", c.Environment)
	case !inRange(c.TestCoverage, 0, 1):
		return invalidContext("test_coverage %v is out of [0, 1]", c.TestCoverage)
	case !inRange(c.RolloutPercentage, 0, 100):
		return invalidContext("rollout_percentage %v is out of [0, 100]", c.RolloutPercentage)
	case !nonNegative(c.CanaryErrorRate):
		return invalidContext("canary_error_rate %v is negative", c.CanaryErrorRate)
	case !nonNegative(c.CanaryLatencyP99):
		return invalidContext("canary_latency_p99 %v is negative", c.CanaryLatencyP99)
	case c.ApprovalCount < 0:
		return invalidContext("approval_count %d is negative", c.ApprovalCount)
	case c.MaxRetries < 0:
		return invalidContext("max_retries %d is negative", c.MaxRetries)
	case c.RetryCount < 0 || c.RetryCount > c.MaxRetries:
		return invalidContext("retry_count %d is out of [0, %d]", c.RetryCount, c.MaxRetries)
	}
	return nil
}

func (c Context) clone() Context {
	if c.PreviousVersion != nil {
		v := *c.PreviousVersion
		c.PreviousVersion = &v
	}
	if c.StartedAt != nil {
		t := *c.StartedAt
		c.StartedAt = &t
	}
	return c
}

func invalidContext(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errtype.ErrInvalidContext, fmt.Sprintf(format, args...))
}

func inRange(v, min, max float64) bool {
	return !math.IsNaN(v) && v >= min && v <= max
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
