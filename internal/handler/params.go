package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/prn-tf/amethyst-cdn/internal/auth"
)

// Params holds the merged request parameters.
type Params map[string]string

// Get returns the value of key and whether it was sent.
func (p Params) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// Optional returns a pointer to the value of key, or nil when absent or empty.
func (p Params) Optional(key string) *string {
	v, ok := p[key]
	if !ok || v == "" {
		return nil
	}
	return &v
}

type paramsKey struct{}

// paramsFrom returns the parameters parsed by parseParams.
func paramsFrom(r *http.Request) Params {
	if p, ok := r.Context().Value(paramsKey{}).(Params); ok {
		return p
	}
	return Params{}
}

// authParams adapts paramsFrom to the guard.
func authParams(r *http.Request) auth.Params {
	return paramsFrom(r)
}

// parseParams merges the urlencoded, multipart or JSON body with the query
// string into Params. Query values win on conflicts. Bodies larger than
// maxBody are rejected with 413.
func parseParams(maxBody, multipartMemory int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && maxBody > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBody)
			}

			params, err := readBody(r, multipartMemory)
			if r.MultipartForm != nil {
				defer r.MultipartForm.RemoveAll()
			}
			if err != nil {
				var maxBytes *http.MaxBytesError
				if errors.As(err, &maxBytes) {
					writeError(w, r, errTooLarge)
					return
				}
				writeError(w, r, errBadRequestBody)
				return
			}

			for key, values := range r.URL.Query() {
				if len(values) > 0 {
					params[key] = values[0]
				}
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), paramsKey{}, params)))
		})
	}
}

func readBody(r *http.Request, multipartMemory int64) (Params, error) {
	params := Params{}
	if r.Body == nil || r.Body == http.NoBody {
		return params, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, err
		}
	case "application/x-www-form-urlencoded":
		// ParseForm ignores bodies of DELETE requests.
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, err
		}
		for key, v := range values {
			if len(v) > 0 {
				params[key] = v[0]
			}
		}
		return params, nil
	case "application/json":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		for key, value := range body {
			switch v := value.(type) {
			case nil:
			case string:
				params[key] = v
			default:
				params[key] = fmt.Sprint(v)
			}
		}
		return params, nil
	default:
		return params, nil
	}

	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params, nil
}

// formFile returns the first file sent under field, or nil.
func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}
