package handler

import (
	"net/http"
	"net/url"

	"github.com/prn-tf/amethyst-cdn/internal/auth"
	"github.com/prn-tf/amethyst-cdn/internal/service"
)

// Register handles POST /v1/auth/-/user/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	email, _ := p.Get(auth.ParamEmail)
	password, _ := p.Get(auth.ParamPassword)
	namespace, _ := p.Get("namespace")

	out, err := h.identity.Register(r.Context(), service.RegisterInput{
		Email:     email,
		Password:  password,
		Namespace: namespace,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	escaped := url.QueryEscape(out.User.Email)
	writeJSON(w, http.StatusOK, Response{
		Code:    "register",
		Message: msgRegistered,
		Body: map[string]string{
			"Authorization-Token": out.Token,
			"Namespace-ID":        out.User.Namespace,
			"Lost-Token":          h.portal.URL("/v1/auth/-/token/recover?email=" + escaped + "&password=yourPassword"),
			"Reset-Token":         h.portal.URL("/v1/auth/-/token/reset?email=" + escaped + "&token=currentToken"),
		},
	})
}

// Recover handles POST /v1/auth/-/token/recover.
func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, auth.ErrEmailMissing)
		return
	}

	token, err := h.identity.Recover(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Code:    "recover",
		Message: msgRecovered,
		Body:    map[string]string{"Authorization-Token": token},
	})
}

// Reset handles POST /v1/auth/-/token/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, auth.ErrEmailMissing)
		return
	}

	token, err := h.identity.Reset(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Code:    "reset",
		Message: msgReset,
		Body:    map[string]string{"Authorization-Token": token},
	})
}

// healthResponse carries a numeric code, unlike Response.
type healthResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /v1/-/health-check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Code: http.StatusOK, Message: "OK"})
}
