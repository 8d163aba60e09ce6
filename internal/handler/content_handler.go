package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prn-tf/amethyst-cdn/internal/auth"
	"github.com/prn-tf/amethyst-cdn/internal/service"
)

// Upload handles POST /v1/-/upload.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, auth.ErrEmailMissing)
		return
	}

	fh := formFile(r, "upload")
	if fh == nil {
		writeError(w, r, errUploadMissing)
		return
	}
	file, err := fh.Open()
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	p := paramsFrom(r)
	entry, err := h.content.Upload(r.Context(), service.UploadInput{
		Owner:       user,
		File:        file,
		Filename:    fh.Filename,
		Name:        p.Optional("name"),
		Type:        p.Optional("type"),
		ExpireAfter: p.Optional("expire_after"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, Response{
		Code:    "Created",
		Message: msgUploaded,
		Body: map[string]string{
			"Content-ID":   entry.ContentID,
			"Namespace-ID": entry.Namespace,
			"Location":     h.portal.URL(entry.Location()),
		},
	})
}

// Delete handles DELETE /v1/-/delete/{content_id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, auth.ErrEmailMissing)
		return
	}

	entry, err := h.content.Delete(r.Context(), user, chi.URLParam(r, "content_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Code:    "deleted",
		Message: msgDeleted,
		Body: map[string]string{
			"Content-ID":        entry.ContentID,
			"Namespace-ID":      entry.Namespace,
			"Previous-Location": h.portal.URL(entry.Location()),
		},
	})
}
