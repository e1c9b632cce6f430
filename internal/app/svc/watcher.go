package svc

import (
	"context"
	"github.com/beldeveloper/release-promoter/internal/app"
	"github.com/pkg/errors"
	"log"
	"time"
)

// DefaultWatchDelay defines the delay between jobs when none is configured.
const DefaultWatchDelay = time.Second

// NewWatcher creates a new instance of the watcher service.
func NewWatcher(jobs []app.WatcherJob, delay app.WatchDelay) Watcher {
	d := time.Duration(delay)
	if d <= 0 {
		d = DefaultWatchDelay
	}
	return Watcher{jobs: jobs, delay: d}
}

// Watcher is a service that runs the sequences of jobs in a loop.
type Watcher struct {
	jobs  []app.WatcherJob
	delay time.Duration
}

// Watch runs the watcher until the context is done.
func (s Watcher) Watch(ctx context.Context) {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	for {
		for _, j := range s.jobs {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			if ctx.Err() != nil {
				return
			}
			err := j.Do(ctx)
			if err != nil {
				log.Println(errors.Wrapf(err, "svc.Watcher.Watch: job=%v", j.Name))
			}
			timer.Reset(s.delay)
		}
		if len(s.jobs) == 0 {
			<-ctx.Done()
			return
		}
	}
}
