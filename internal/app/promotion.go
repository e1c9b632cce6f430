package app

import (
	"context"
	"github.com/beldeveloper/release-promoter/internal/app/pipeline"
	"time"
)

// Promotion is a model that represents the persisted state of a single release promotion.
type Promotion struct {
	pipeline.Context
	State     pipeline.State        `json:"state"`
	History   []pipeline.Transition `json:"history"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// FormAddPromotion represents a form of new release candidate.
type FormAddPromotion struct {
	DeploymentID      string               `json:"deployment_id"`
	ServiceName       string               `json:"service_name"`
	Version           string               `json:"version"`
	Environment       pipeline.Environment `json:"environment"`
	CommitSHA         string               `json:"commit_sha"`
	Author            string               `json:"author"`
	IsHotfix          bool                 `json:"is_hotfix"`
	RequiresMigration bool                 `json:"requires_migration"`
	TestCoverage      float64              `json:"test_coverage"`
	MaxRetries        int                  `json:"max_retries"`
	PreviousVersion   *string              `json:"previous_version"`
}

// FormApproval represents the approvals update; an empty count adds a single approval.
type FormApproval struct {
	Count *int `json:"count"`
}

// FormCanary represents the canary telemetry reported by the probe.
type FormCanary struct {
	ErrorRate  float64 `json:"canary_error_rate"`
	LatencyP99 float64 `json:"canary_latency_p99"`
}

// PromotionSvc describes the promotion service.
type PromotionSvc interface {
	List(ctx context.Context) ([]Promotion, error)
	Add(ctx context.Context, f FormAddPromotion) (Promotion, error)
	Get(ctx context.Context, id string) (Promotion, error)
	Advance(ctx context.Context, id string) (Promotion, error)
	Cancel(ctx context.Context, id string) (Promotion, error)
	ForceRollback(ctx context.Context, id string) (Promotion, error)
	Resume(ctx context.Context, id string) (Promotion, error)
	Approve(ctx context.Context, id string, f FormApproval) (Promotion, error)
	ReportCanary(ctx context.Context, id string, f FormCanary) (Promotion, error)
	WatchJob(ctx context.Context) error
}

// PromotionRepo describes interactions with the promotion DB.
type PromotionRepo interface {
	FindAll(ctx context.Context) ([]Promotion, error)
	FindActive(ctx context.Context) ([]Promotion, error)
	FindByID(ctx context.Context, id string) (Promotion, error)
	Add(ctx context.Context, p Promotion) (Promotion, error)
	Update(ctx context.Context, p Promotion) (Promotion, error)
}

// ArchiveSvc describes the storage for the finished promotions.
type ArchiveSvc interface {
	Archive(ctx context.Context, p Promotion) error
}

// ApiAccessKey is a data type for storing the API access key, used for DI.
type ApiAccessKey string
