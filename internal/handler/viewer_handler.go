package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/service"
)

// Raw handles GET /-/{namespace_id}/{content_id}/raw.
func (h *Handler) Raw(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.resolve(w, r)
	if !ok {
		return
	}
	h.stream(w, r, entry, service.ViewRaw)
}

// View handles GET /-/{namespace_id}/{content_id}, rendering by type hint.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.resolve(w, r)
	if !ok {
		return
	}

	switch entry.Kind() {
	case domain.KindText:
		page, err := h.delivery.RenderText(r.Context(), entry)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeBody(w, "text/html; charset=utf-8", page)

	case domain.KindImage:
		data, err := h.delivery.ReadAll(r.Context(), entry)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeBody(w, service.ExtensionType(entry), data)

	default:
		h.stream(w, r, entry, service.ViewRendered)
	}
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*domain.ContentEntry, bool) {
	entry, err := h.delivery.Resolve(r.Context(), chi.URLParam(r, "namespace_id"), chi.URLParam(r, "content_id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return entry, true
}

// stream sends the object through the bandwidth throttle. Once headers are
// sent failures can only be logged.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, entry *domain.ContentEntry, view string) {
	rc, err := h.delivery.Open(r.Context(), entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	header := w.Header()
	header.Set("Content-Type", service.ContentType(entry))
	header.Set("Content-Length", strconv.FormatInt(entry.Upload.Size, 10))
	if entry.Upload.Checksum != "" {
		header.Set("ETag", `"`+entry.Upload.Checksum+`"`)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := h.delivery.Send(r.Context(), w, rc, entry, view); err != nil {
		h.logger.Debug().Err(err).Str("key", entry.Key()).Msg("content stream aborted")
	}
}

func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
