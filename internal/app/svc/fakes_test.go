package svc

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/beldeveloper/release-promoter/internal/app"
	"github.com/beldeveloper/release-promoter/internal/app/errtype"
	"github.com/beldeveloper/release-promoter/internal/app/pipeline"
	"github.com/beldeveloper/release-promoter/pkg"
)

type memoryRepo struct {
	mu    sync.Mutex
	items map[string]app.Promotion
	fail  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[string]app.Promotion)}
}

func (r *memoryRepo) FindAll(ctx context.Context) ([]app.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]app.Promotion, 0, len(r.items))
	for _, p := range r.items {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].DeploymentID < res[j].DeploymentID })
	return res, r.fail
}

func (r *memoryRepo) FindActive(ctx context.Context) ([]app.Promotion, error) {
	all, err := r.FindAll(ctx)
	res := make([]app.Promotion, 0, len(all))
	for _, p := range all {
		if !p.State.Terminal() {
			res = append(res, p)
		}
	}
	return res, err
}

func (r *memoryRepo) FindByID(ctx context.Context, id string) (app.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return app.Promotion{}, r.fail
	}
	p, exists := r.items[id]
	if !exists {
		return p, errtype.ErrNotFound
	}
	p.History = append([]pipeline.Transition(nil), p.History...)
	return p, nil
}

func (r *memoryRepo) Add(ctx context.Context, p app.Promotion) (app.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.DeploymentID] = p
	return p, nil
}

func (r *memoryRepo) Update(ctx context.Context, p app.Promotion) (app.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[p.DeploymentID]; !exists {
		return p, errtype.ErrNotFound
	}
	r.items[p.DeploymentID] = p
	return p, nil
}

type recordingHook struct {
	mu    sync.Mutex
	calls []pkg.HookTransition
	fail  error
}

func (h *recordingHook) Notify(ctx context.Context, t pkg.HookTransition) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, t)
	return h.fail
}

type recordingArchive struct {
	mu       sync.Mutex
	archived []app.Promotion
	fail     error
}

func (a *recordingArchive) Archive(ctx context.Context, p app.Promotion) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	a.archived = append(a.archived, p)
	return nil
}

type testEnv struct {
	svc     *Promotion
	repo    *memoryRepo
	hook    *recordingHook
	archive *recordingArchive
	now     time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:    newMemoryRepo(),
		hook:    &recordingHook{},
		archive: &recordingArchive{},
		now:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewPromotion(env.repo, env.hook, env.archive, pipeline.DefaultPolicy()).(*Promotion)
	env.svc.now = func() time.Time { return env.now }
	return env
}

func stagingForm(id string) app.FormAddPromotion {
	return app.FormAddPromotion{
		DeploymentID: id,
		ServiceName:  "billing",
		Version:      "2.1.0",
		Environment:  pipeline.EnvStaging,
		CommitSHA:    "c0ffee1",
		Author:       "jdoe",
		TestCoverage: 0.7,
		MaxRetries:   1,
	}
}

func productionForm(id string) app.FormAddPromotion {
	f := stagingForm(id)
	f.Environment = pipeline.EnvProduction
	f.TestCoverage = 0.85
	return f
}

func errFailing(what string) error {
	return fmt.Errorf("%s is down", what)
}
