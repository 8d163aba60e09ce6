package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/prn-tf/amethyst-cdn/internal/auth"
)

// Policy is a per-IP request budget.
type Policy struct {
	Requests int
	Window   time.Duration
}

// Route policies.
var (
	// PolicyStrict guards identity, delete and health routes.
	PolicyStrict = Policy{Requests: 1, Window: 2 * time.Second}

	// PolicyUpload guards uploads.
	PolicyUpload = Policy{Requests: 2, Window: time.Second}

	// PolicyViewer guards the public viewers.
	PolicyViewer = Policy{Requests: 8, Window: time.Second}
)

// verb is a chi registration function such as chi.Router.Get.
type verb func(chi.Router, string, http.HandlerFunc)

// Supported verbs.
var (
	verbGet    verb = chi.Router.Get
	verbHead   verb = chi.Router.Head
	verbPost   verb = chi.Router.Post
	verbPut    verb = chi.Router.Put
	verbPatch  verb = chi.Router.Patch
	verbDelete verb = chi.Router.Delete
)

// route declares one endpoint.
type route struct {
	verb    verb
	path    string
	policy  Policy
	checks  []auth.Check
	handler func(*Handler, http.ResponseWriter, *http.Request)
}

// routes is the endpoint table of the service.
var routes = []route{
	{
		verb:    verbPost,
		path:    "/v1/auth/-/user/register",
		policy:  PolicyStrict,
		handler: (*Handler).Register,
	},
	{
		verb:    verbPost,
		path:    "/v1/auth/-/token/recover",
		policy:  PolicyStrict,
		checks:  []auth.Check{auth.Email, auth.Password},
		handler: (*Handler).Recover,
	},
	{
		verb:    verbPost,
		path:    "/v1/auth/-/token/reset",
		policy:  PolicyStrict,
		checks:  []auth.Check{auth.Email, auth.Token},
		handler: (*Handler).Reset,
	},
	{
		verb:    verbPost,
		path:    "/v1/-/upload",
		policy:  PolicyUpload,
		checks:  []auth.Check{auth.Email, auth.Token},
		handler: (*Handler).Upload,
	},
	{
		verb:    verbDelete,
		path:    "/v1/-/delete/{content_id}",
		policy:  PolicyStrict,
		checks:  []auth.Check{auth.Email, auth.Token},
		handler: (*Handler).Delete,
	},
	{
		verb:    verbGet,
		path:    "/v1/-/health-check",
		policy:  PolicyStrict,
		handler: (*Handler).Health,
	},
	{
		verb:    verbGet,
		path:    "/-/{namespace_id}/{content_id}/raw",
		policy:  PolicyViewer,
		handler: (*Handler).Raw,
	},
	{
		verb:    verbGet,
		path:    "/-/{namespace_id}/{content_id}",
		policy:  PolicyViewer,
		handler: (*Handler).View,
	},
}

// mount registers every route on r.
func (h *Handler) mount(r chi.Router, limits bool) {
	for _, rt := range routes {
		var mw []func(http.Handler) http.Handler
		if limits {
			mw = append(mw, limiter(rt.policy))
		}
		mw = append(mw, parseParams(h.maxBody, h.multipartMemory))
		if len(rt.checks) > 0 {
			mw = append(mw, h.guard.Middleware(authParams, writeError, rt.checks...))
		}

		serve := rt.handler
		rt.verb(r.With(mw...), rt.path, func(w http.ResponseWriter, req *http.Request) {
			serve(h, w, req)
		})
	}
}

// limiter applies p per client IP and answers 429 when it is exceeded.
func limiter(p Policy) func(http.Handler) http.Handler {
	return httprate.Limit(
		p.Requests,
		p.Window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, errTooManyRequests)
		}),
	)
}
