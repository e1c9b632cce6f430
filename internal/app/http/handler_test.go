package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beldeveloper/release-promoter/internal/app"
	"github.com/beldeveloper/release-promoter/internal/app/errtype"
	"github.com/beldeveloper/release-promoter/internal/app/pipeline"
)

const testKey = "secret"

type fakeSvc struct {
	promotions map[string]app.Promotion
	calls      []string
	approval   app.FormApproval
	canary     app.FormCanary
	failWith   error
}

func newFakeSvc() *fakeSvc {
	return &fakeSvc{promotions: map[string]app.Promotion{
		"p-1": {
			Context: pipeline.Context{DeploymentID: "p-1", ServiceName: "api", Version: "1.0.0"},
			State:   pipeline.StatePending,
		},
	}}
}

func (f *fakeSvc) List(ctx context.Context) ([]app.Promotion, error) {
	f.calls = append(f.calls, "list")
	res := make([]app.Promotion, 0, len(f.promotions))
	for _, p := range f.promotions {
		res = append(res, p)
	}
	return res, f.failWith
}

func (f *fakeSvc) Add(ctx context.Context, form app.FormAddPromotion) (app.Promotion, error) {
	f.calls = append(f.calls, "add")
	if f.failWith != nil {
		return app.Promotion{}, f.failWith
	}
	if form.ServiceName == "" {
		return app.Promotion{}, errors.Wrap(errtype.ErrInvalidContext, "service_name")
	}
	p := app.Promotion{
		Context: pipeline.Context{DeploymentID: form.DeploymentID, ServiceName: form.ServiceName, Version: form.Version},
		State:   pipeline.StatePending,
	}
	f.promotions[p.DeploymentID] = p
	return p, nil
}

func (f *fakeSvc) op(name, id string) (app.Promotion, error) {
	f.calls = append(f.calls, name)
	if f.failWith != nil {
		return app.Promotion{}, f.failWith
	}
	p, ok := f.promotions[id]
	if !ok {
		return app.Promotion{}, errors.Wrapf(errtype.ErrNotFound, "promotion=%s", id)
	}
	return p, nil
}

func (f *fakeSvc) Get(ctx context.Context, id string) (app.Promotion, error) {
	return f.op("get", id)
}

func (f *fakeSvc) Advance(ctx context.Context, id string) (app.Promotion, error) {
	return f.op("advance", id)
}

func (f *fakeSvc) Cancel(ctx context.Context, id string) (app.Promotion, error) {
	return f.op("cancel", id)
}

func (f *fakeSvc) ForceRollback(ctx context.Context, id string) (app.Promotion, error) {
	return f.op("rollback", id)
}

func (f *fakeSvc) Resume(ctx context.Context, id string) (app.Promotion, error) {
	return f.op("resume", id)
}

func (f *fakeSvc) Approve(ctx context.Context, id string, form app.FormApproval) (app.Promotion, error) {
	f.approval = form
	return f.op("approve", id)
}

func (f *fakeSvc) ReportCanary(ctx context.Context, id string, form app.FormCanary) (app.Promotion, error) {
	f.canary = form
	return f.op("canary", id)
}

func (f *fakeSvc) WatchJob(ctx context.Context) error {
	return nil
}

func serve(t *testing.T, svc *fakeSvc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(NewHandler(svc, testKey))
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Unauthorized(t *testing.T) {
	svc := newFakeSvc()
	for _, target := range []string{"/promotions", "/promotions?accessKey=wrong", "/promotion/p-1"} {
		rec := serve(t, svc, http.MethodGet, target, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
	assert.Empty(t, svc.calls)
}

func TestHandler_Operations(t *testing.T) {
	tests := []struct {
		method string
		path   string
		call   string
	}{
		{http.MethodGet, "/promotion/p-1", "get"},
		{http.MethodPost, "/promotion/p-1/advance", "advance"},
		{http.MethodPost, "/promotion/p-1/cancel", "cancel"},
		{http.MethodPost, "/promotion/p-1/rollback", "rollback"},
		{http.MethodPost, "/promotion/p-1/resume", "resume"},
		{http.MethodPost, "/promotion/p-1/approve", "approve"},
		{http.MethodPost, "/promotion/p-1/canary", "canary"},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			svc := newFakeSvc()
			rec := serve(t, svc, tt.method, tt.path+"?accessKey="+testKey, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []string{tt.call}, svc.calls)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var got app.Promotion
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, "p-1", got.DeploymentID)
			assert.Equal(t, pipeline.StatePending, got.State)
		})
	}
}

func TestHandler_AddPromotion(t *testing.T) {
	svc := newFakeSvc()
	body := `{"deployment_id":"p-2","service_name":"billing","version":"2.0.0","environment":"staging"}`
	rec := serve(t, svc, http.MethodPost, "/promotions?accessKey="+testKey, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var got app.Promotion
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "p-2", got.DeploymentID)
	assert.Equal(t, "billing", got.ServiceName)
	assert.Contains(t, svc.promotions, "p-2")
}

func TestHandler_List(t *testing.T) {
	svc := newFakeSvc()
	rec := serve(t, svc, http.MethodGet, "/promotions?accessKey="+testKey, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []app.Promotion
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Len(t, got, 1)
}

func TestHandler_ApproveAndCanaryForms(t *testing.T) {
	svc := newFakeSvc()
	rec := serve(t, svc, http.MethodPost, "/promotion/p-1/approve?accessKey="+testKey, `{"count":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.approval.Count)
	assert.Equal(t, 3, *svc.approval.Count)

	rec = serve(t, svc, http.MethodPost, "/promotion/p-1/canary?accessKey="+testKey,
		`{"canary_error_rate":0.02,"canary_latency_p99":320}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, app.FormCanary{ErrorRate: 0.02, LatencyP99: 320}, svc.canary)
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		failWith error
		method   string
		path     string
		body     string
		wantCode int
	}{
		{"not found", nil, http.MethodGet, "/promotion/missing", "", http.StatusNotFound},
		{"malformed body", nil, http.MethodPost, "/promotions", "{", http.StatusBadRequest},
		{"invalid context", nil, http.MethodPost, "/promotions", `{"deployment_id":"x"}`, http.StatusBadRequest},
		{"invalid operation", errors.Wrap(errtype.ErrInvalidOperation, "svc"), http.MethodPost, "/promotion/p-1/resume", "", http.StatusConflict},
		{"bad input", errors.Wrap(errtype.ErrBadInput, "svc"), http.MethodPost, "/promotion/p-1/approve", "", http.StatusBadRequest},
		{"internal", errors.New("db is down"), http.MethodGet, "/promotions", "", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeSvc()
			svc.failWith = tt.failWith
			rec := serve(t, svc, tt.method, tt.path+"?accessKey="+testKey, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusInternalServerError {
				var body errorResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.NotEmpty(t, body.Error)
			}
		})
	}
}

func TestRouter_Options(t *testing.T) {
	rec := serve(t, newFakeSvc(), http.MethodOptions, "/promotion/p-1/advance", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
