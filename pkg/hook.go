package pkg

import (
	"context"
	"time"
)

// HookTransition contains the promotion state change for passing into hook handler.
type HookTransition struct {
	DeploymentID      string
	ServiceName       string
	Version           string
	Environment       string
	From              string
	To                string
	At                time.Time
	RolloutPercentage float64
	RetryCount        int
}

// HookSvc describes the interactions with the hook handler.
type HookSvc interface {
	Notify(ctx context.Context, t HookTransition) error
}
