package http

import (
	"github.com/julienschmidt/httprouter"
	"net/http"
)

// NewRouter creates and configures a new instance of the router.
func NewRouter(h Handler) *httprouter.Router {
	r := httprouter.New()

	r.GET("/promotions", h.Promotions)
	r.POST("/promotions", h.AddPromotion)
	r.GET("/promotion/:id", h.Promotion)
	r.POST("/promotion/:id/advance", h.Advance)
	r.POST("/promotion/:id/cancel", h.Cancel)
	r.POST("/promotion/:id/rollback", h.Rollback)
	r.POST("/promotion/:id/resume", h.Resume)
	r.POST("/promotion/:id/approve", h.Approve)
	r.POST("/promotion/:id/canary", h.Canary)

	r.GlobalOPTIONS = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetDefaultHeaders(w)
		header := w.Header()
		header.Set("Access-Control-Allow-Methods", header.Get("Allow"))
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}
