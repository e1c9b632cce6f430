package app

import (
	"context"
	"time"
)

// WatchDelay is a data type for storing the delay between the watcher jobs, used for DI.
type WatchDelay time.Duration

// WatcherJob is a job that is run frequently by the watcher service.
type WatcherJob struct {
	Name string
	Do   func(ctx context.Context) error
}
