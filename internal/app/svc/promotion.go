package svc

import (
	"context"
	"fmt"
	"github.com/beldeveloper/release-promoter/internal/app"
	"github.com/beldeveloper/release-promoter/internal/app/errtype"
	"github.com/beldeveloper/release-promoter/internal/app/pipeline"
	"github.com/beldeveloper/release-promoter/pkg"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"log"
	"strings"
	"time"
)

// NewPromotion creates a new instance of the promotions service.
func NewPromotion(
	repo app.PromotionRepo,
	hookSvc pkg.HookSvc,
	archiveSvc app.ArchiveSvc,
	policy pipeline.Policy,
) app.PromotionSvc {
	return &Promotion{
		repo:       repo,
		hookSvc:    hookSvc,
		archiveSvc: archiveSvc,
		policy:     policy,
		locks:      newKeyLocker(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Promotion is a service that drives the release promotions.
type Promotion struct {
	repo       app.PromotionRepo
	hookSvc    pkg.HookSvc
	archiveSvc app.ArchiveSvc
	policy     pipeline.Policy
	locks      *keyLocker
	now        func() time.Time
}

// List returns all promotions.
func (s *Promotion) List(ctx context.Context) ([]app.Promotion, error) {
	res, err := s.repo.FindAll(ctx)
	return res, errors.Wrap(err, "svc.Promotion.List.FindAll")
}

// Add registers a new release candidate at the pending state.
func (s *Promotion) Add(ctx context.Context, f app.FormAddPromotion) (app.Promotion, error) {
	id := strings.TrimSpace(f.DeploymentID)
	if id == "" {
		id = uuid.NewString()
	}
	unlock := s.locks.lock(id)
	defer unlock()
	_, err := s.repo.FindByID(ctx, id)
	if err == nil {
		err = fmt.Errorf("%w: promotion %s already exists", errtype.ErrBadInput, id)
		return app.Promotion{}, errors.Wrapf(err, "svc.Promotion.Add.FindByID: promotion=%v", id)
	}
	if !errors.Is(err, errtype.ErrNotFound) {
		return app.Promotion{}, errors.Wrapf(err, "svc.Promotion.Add.FindByID: promotion=%v", id)
	}
	m, err := pipeline.New(pipeline.Context{
		DeploymentID:      id,
		ServiceName:       strings.TrimSpace(f.ServiceName),
		Version:           strings.TrimSpace(f.Version),
		Environment:       f.Environment,
		CommitSHA:         strings.TrimSpace(f.CommitSHA),
		Author:            f.Author,
		IsHotfix:          f.IsHotfix,
		RequiresMigration: f.RequiresMigration,
		TestCoverage:      f.TestCoverage,
		MaxRetries:        f.MaxRetries,
		PreviousVersion:   f.PreviousVersion,
	}, s.policy, pipeline.WithClock(s.now))
	if err != nil {
		return app.Promotion{}, errors.Wrap(err, "svc.Promotion.Add.New")
	}
	now := s.now()
	p, err := s.repo.Add(ctx, app.Promotion{
		Context:   m.Context(),
		State:     m.State(),
		History:   m.History(),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return p, errors.Wrapf(err, "svc.Promotion.Add.Add: promotion=%v", id)
	}
	log.Printf("The promotion %s of %s %s to %s is requested\n", p.DeploymentID, p.ServiceName, p.Version, p.Environment)
	return p, nil
}

// Get returns the promotion with its current state and history.
func (s *Promotion) Get(ctx context.Context, id string) (app.Promotion, error) {
	p, err := s.repo.FindByID(ctx, id)
	return p, errors.Wrapf(err, "svc.Promotion.Get.FindByID: promotion=%v", id)
}

// Advance performs a single promotion step.
func (s *Promotion) Advance(ctx context.Context, id string) (app.Promotion, error) {
	return s.apply(ctx, id, "Advance", func(m *pipeline.Machine) error {
		m.Advance()
		return nil
	})
}

// Cancel abandons the promotion.
func (s *Promotion) Cancel(ctx context.Context, id string) (app.Promotion, error) {
	return s.apply(ctx, id, "Cancel", (*pipeline.Machine).Cancel)
}

// ForceRollback starts the rollback of the promotion.
func (s *Promotion) ForceRollback(ctx context.Context, id string) (app.Promotion, error) {
	return s.apply(ctx, id, "ForceRollback", (*pipeline.Machine).ForceRollback)
}

// Resume continues the paused rollout.
func (s *Promotion) Resume(ctx context.Context, id string) (app.Promotion, error) {
	return s.apply(ctx, id, "Resume", (*pipeline.Machine).Resume)
}

// Approve records the approvals coming from the review system.
func (s *Promotion) Approve(ctx context.Context, id string, f app.FormApproval) (app.Promotion, error) {
	return s.apply(ctx, id, "Approve", func(m *pipeline.Machine) error {
		if f.Count == nil {
			m.RecordApproval()
			return nil
		}
		return m.SetApprovalCount(*f.Count)
	})
}

// ReportCanary stores the latest canary telemetry.
func (s *Promotion) ReportCanary(ctx context.Context, id string, f app.FormCanary) (app.Promotion, error) {
	return s.apply(ctx, id, "ReportCanary", func(m *pipeline.Machine) error {
		return m.ReportCanary(f.ErrorRate, f.LatencyP99)
	})
}

// WatchJob advances every unfinished promotion by one step.
func (s *Promotion) WatchJob(ctx context.Context) error {
	promotions, err := s.repo.FindActive(ctx)
	if err != nil {
		return errors.Wrap(err, "svc.Promotion.WatchJob.FindActive")
	}
	for _, p := range promotions {
		if p.State == pipeline.StateRolloutPaused {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		_, err = s.Advance(ctx, p.DeploymentID)
		if err != nil {
			log.Println(errors.Wrapf(err, "svc.Promotion.WatchJob.Advance: promotion=%v", p.DeploymentID))
		}
	}
	return nil
}

func (s *Promotion) apply(ctx context.Context, id, op string, fn func(m *pipeline.Machine) error) (app.Promotion, error) {
	unlock := s.locks.lock(id)
	defer unlock()
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return p, errors.Wrapf(err, "svc.Promotion.%s.FindByID: promotion=%v", op, id)
	}
	m, err := pipeline.Restore(p.Context, p.State, p.History, s.policy, pipeline.WithClock(s.now))
	if err != nil {
		return p, errors.Wrapf(err, "svc.Promotion.%s.Restore: promotion=%v, state=%v", op, id, p.State)
	}
	prev := m.State()
	err = fn(m)
	if err != nil {
		return p, errors.Wrapf(err, "svc.Promotion.%s: promotion=%v, state=%v", op, id, prev)
	}
	p.Context = m.Context()
	p.State = m.State()
	p.UpdatedAt = s.now()
	tr, changed := m.LastTransition()
	changed = changed && p.State != prev
	if changed {
		p.History = append(p.History, tr)
	}
	p, err = s.repo.Update(ctx, p)
	if err != nil {
		return p, errors.Wrapf(err, "svc.Promotion.%s.Update: promotion=%v, state=%v", op, id, p.State)
	}
	if changed {
		s.onTransition(ctx, p, tr)
	}
	return p, nil
}

// onTransition publishes the state change; failures never affect the promotion.
func (s *Promotion) onTransition(ctx context.Context, p app.Promotion, tr pipeline.Transition) {
	log.Printf("The promotion %s moved %s -> %s\n", p.DeploymentID, tr.From, tr.To)
	err := s.hookSvc.Notify(ctx, pkg.HookTransition{
		DeploymentID:      p.DeploymentID,
		ServiceName:       p.ServiceName,
		Version:           p.Version,
		Environment:       string(p.Environment),
		From:              string(tr.From),
		To:                string(tr.To),
		At:                tr.At,
		RolloutPercentage: p.RolloutPercentage,
		RetryCount:        p.RetryCount,
	})
	if err != nil {
		log.Println(errors.Wrapf(err, "svc.Promotion.onTransition.Notify: promotion=%v, state=%v", p.DeploymentID, tr.To))
	}
	if !p.State.Terminal() {
		return
	}
	err = s.archiveSvc.Archive(ctx, p)
	if err != nil {
		log.Println(errors.Wrapf(err, "svc.Promotion.onTransition.Archive: promotion=%v", p.DeploymentID))
		return
	}
	log.Printf("The promotion %s finished as %s and is archived\n", p.DeploymentID, p.State)
}
