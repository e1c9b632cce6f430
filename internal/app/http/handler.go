package http

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/beldeveloper/release-promoter/internal/app"
	"github.com/beldeveloper/release-promoter/internal/app/errtype"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"io"
	"net/http"
	"strings"
)

// NewHandler creates a new instance of the REST API handler.
func NewHandler(promoSvc app.PromotionSvc, accessKey app.ApiAccessKey) Handler {
	return Handler{
		promoSvc:  promoSvc,
		accessKey: string(accessKey),
	}
}

// Handler handles the REST API requests.
type Handler struct {
	promoSvc  app.PromotionSvc
	accessKey string
}

// Promotions returns the list of promotions.
func (h Handler) Promotions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	err := h.validateKey(r)
	if err != nil {
		apiError(w, err)
		return
	}
	res, err := h.promoSvc.List(r.Context())
	if err != nil {
		apiError(w, err)
		return
	}
	apiSuccess(w, res)
}

// AddPromotion registers a new release candidate.
func (h Handler) AddPromotion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	err := h.validateKey(r)
	if err != nil {
		apiError(w, err)
		return
	}
	var f app.FormAddPromotion
	err = decode(r, &f)
	if err != nil {
		apiError(w, err)
		return
	}
	res, err := h.promoSvc.Add(r.Context(), f)
	if err != nil {
		apiError(w, err)
		return
	}
	apiSuccess(w, res)
}

// Promotion returns the current state and the history of the promotion.
func (h Handler) Promotion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.operation(h.promoSvc.Get)(w, r, ps)
}

// Advance performs a single promotion step.
func (h Handler) Advance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.operation(h.promoSvc.Advance)(w, r, ps)
}

// Cancel abandons the promotion.
func (h Handler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.operation(h.promoSvc.Cancel)(w, r, ps)
}

// Rollback forces the rollback of the promotion.
func (h Handler) Rollback(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.operation(h.promoSvc.ForceRollback)(w, r, ps)
}

// Resume continues the paused rollout.
func (h Handler) Resume(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.operation(h.promoSvc.Resume)(w, r, ps)
}

// Approve records the approvals of the promotion.
func (h Handler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	err := h.validateKey(r)
	if err != nil {
		apiError(w, err)
		return
	}
	var f app.FormApproval
	err = decode(r, &f)
	if err != nil {
		apiError(w, err)
		return
	}
	res, err := h.promoSvc.Approve(r.Context(), ps.ByName("id"), f)
	if err != nil {
		apiError(w, err)
		return
	}
	apiSuccess(w, res)
}

// Canary stores the canary telemetry of the promotion.
func (h Handler) Canary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	err := h.validateKey(r)
	if err != nil {
		apiError(w, err)
		return
	}
	var f app.FormCanary
	err = decode(r, &f)
	if err != nil {
		apiError(w, err)
		return
	}
	res, err := h.promoSvc.ReportCanary(r.Context(), ps.ByName("id"), f)
	if err != nil {
		apiError(w, err)
		return
	}
	apiSuccess(w, res)
}

func (h Handler) operation(do func(ctx context.Context, id string) (app.Promotion, error)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		err := h.validateKey(r)
		if err != nil {
			apiError(w, err)
			return
		}
		id := strings.TrimSpace(ps.ByName("id"))
		if id == "" {
			apiError(w, fmt.Errorf("%w: empty promotion id", errtype.ErrBadInput))
			return
		}
		res, err := do(r.Context(), id)
		if err != nil {
			apiError(w, err)
			return
		}
		apiSuccess(w, res)
	}
}

func (h Handler) validateKey(r *http.Request) error {
	if r.URL.Query().Get("accessKey") != h.accessKey {
		return errors.Wrap(errtype.ErrUnauthorized, "http.Handler.validateKey")
	}
	return nil
}

// decode accepts an empty body as the zero form.
func decode(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errtype.ErrBadInput, err)
	}
	return nil
}
