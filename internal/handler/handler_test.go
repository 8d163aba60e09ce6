package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/amethyst-cdn/internal/auth"
	"github.com/prn-tf/amethyst-cdn/internal/config"
	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
	"github.com/prn-tf/amethyst-cdn/internal/repository/sqlite"
	"github.com/prn-tf/amethyst-cdn/internal/service"
	"github.com/prn-tf/amethyst-cdn/internal/storage"
	"github.com/prn-tf/amethyst-cdn/internal/storage/filesystem"
	"github.com/prn-tf/amethyst-cdn/internal/throttle"
)

type testEnv struct {
	handler http.Handler
	repos   *repository.Repositories
	backend *filesystem.Backend
}

type envOption func(*RouterConfig)

func withRateLimit() envOption {
	return func(c *RouterConfig) { c.RateLimit = true }
}

func withDomain(domain string) envOption {
	return func(c *RouterConfig) { c.Portal.Domain = domain }
}

func withMaxBody(n int64) envOption {
	return func(c *RouterConfig) { c.Server.MaxBodySize = n }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	logger := zerolog.Nop()

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(filepath.Join(dir, "cdn.db")), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	repos := sqlite.NewRepositories(db)
	backend, err := filesystem.NewBackend(filepath.Join(dir, "data"), logger)
	require.NoError(t, err)

	cfg := RouterConfig{
		IdentityService: service.NewIdentityService(repos.User, repos.Namespace, nil, logger, 8),
		ContentService:  service.NewContentService(repos.Content, backend, nil, logger, 8),
		DeliveryService: service.NewDeliveryService(repos.Namespace, repos.Content, backend,
			throttle.NewGroup(0, 0), nil, logger, service.DeliveryConfig{}),
		Guard: auth.NewGuard(repos.User, logger),
		Server: config.ServerConfig{
			MaxBodySize:     32 << 20,
			MultipartMemory: 1 << 20,
		},
		Logger: logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testEnv{handler: NewRouter(cfg), repos: repos, backend: backend}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func uploadRequest(t *testing.T, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("upload", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/-/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type envelope struct {
	Code    any               `json:"code"`
	Message string            `json:"message"`
	Body    map[string]string `json:"body"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

// register creates an account and returns its namespace and token.
func (e *testEnv) register(t *testing.T, email string) (string, string) {
	t.Helper()
	rec := e.do(formRequest(http.MethodPost, "/v1/auth/-/user/register", url.Values{
		"email":    {email},
		"password": {"hunter2"},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec).Body
	return body["Namespace-ID"], body["Authorization-Token"]
}

func (e *testEnv) upload(t *testing.T, email, token string, fields map[string]string, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	all := map[string]string{"email": email, "token": token}
	for k, v := range fields {
		all[k] = v
	}
	return e.do(uploadRequest(t, all, filename, content))
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/-/health-check", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":200,"message":"OK"}`, rec.Body.String())
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, withDomain("cdn.example.com"))

	rec := env.do(formRequest(http.MethodPost, "/v1/auth/-/user/register", url.Values{
		"email":    {"first@example.com"},
		"password": {"hunter2"},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode(t, rec)
	assert.Equal(t, "register", resp.Code)
	assert.Equal(t, msgRegistered, resp.Message)
	assert.Len(t, resp.Body["Authorization-Token"], 128)
	assert.Len(t, resp.Body["Namespace-ID"], 8)
	assert.Equal(t, "https://cdn.example.com/v1/auth/-/token/recover?email=first%40example.com&password=yourPassword", resp.Body["Lost-Token"])
	assert.True(t, strings.HasPrefix(resp.Body["Reset-Token"], "https://cdn.example.com/v1/auth/-/token/reset?"))

	user, err := env.repos.User.GetByEmail(context.Background(), "first@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
}

func TestRegisterErrors(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "taken@example.com")

	rec := env.do(formRequest(http.MethodPost, "/v1/auth/-/user/register", url.Values{
		"email": {"owner@example.com"}, "password": {"x"}, "namespace": {"claimed"},
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name       string
		values     url.Values
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid email",
			values:     url.Values{"email": {"nope"}, "password": {"x"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BadRequest",
		},
		{
			name:       "missing password",
			values:     url.Values{"email": {"a@example.com"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BadRequest",
		},
		{
			name:       "email taken",
			values:     url.Values{"email": {"taken@example.com"}, "password": {"x"}},
			wantStatus: http.StatusConflict,
			wantCode:   "Conflict",
		},
		{
			name:       "namespace taken",
			values:     url.Values{"email": {"b@example.com"}, "password": {"x"}, "namespace": {"claimed"}},
			wantStatus: http.StatusConflict,
			wantCode:   "Conflict",
		},
		{
			name:       "namespace invalid",
			values:     url.Values{"email": {"c@example.com"}, "password": {"x"}, "namespace": {"../up"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BadRequest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(formRequest(http.MethodPost, "/v1/auth/-/user/register", tt.values))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode(t, rec).Code)
		})
	}
}

func TestRecoverAndReset(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "a@example.com")

	// Query parameters win over the body.
	req := formRequest(http.MethodPost, "/v1/auth/-/token/recover?password=hunter2", url.Values{
		"email": {"a@example.com"}, "password": {"wrong"},
	})
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Equal(t, "recover", resp.Code)
	assert.Equal(t, token, resp.Body["Authorization-Token"])

	rec = env.do(formRequest(http.MethodPost, "/v1/auth/-/token/recover", url.Values{
		"email": {"a@example.com"}, "password": {"wrong"},
	}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(formRequest(http.MethodPost, "/v1/auth/-/token/reset", url.Values{
		"email": {"a@example.com"}, "token": {token},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decode(t, rec)
	assert.Equal(t, "reset", resp.Code)
	newToken := resp.Body["Authorization-Token"]
	assert.NotEqual(t, token, newToken)

	rec = env.do(formRequest(http.MethodPost, "/v1/auth/-/token/reset", url.Values{
		"email": {"a@example.com"}, "token": {token},
	}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthFailures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@example.com")

	tests := []struct {
		name       string
		values     url.Values
		wantStatus int
		wantMsg    string
	}{
		{name: "no email", values: url.Values{}, wantStatus: http.StatusUnauthorized, wantMsg: auth.ErrEmailMissing.Message},
		{name: "unknown email", values: url.Values{"email": {"x@example.com"}}, wantStatus: http.StatusConflict, wantMsg: auth.ErrEmailUnknown.Message},
		{name: "no token", values: url.Values{"email": {"a@example.com"}}, wantStatus: http.StatusUnauthorized, wantMsg: auth.ErrTokenMissing.Message},
		{name: "bad token", values: url.Values{"email": {"a@example.com"}, "token": {"bad"}}, wantStatus: http.StatusUnauthorized, wantMsg: auth.ErrTokenMismatch.Message},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(formRequest(http.MethodPost, "/v1/auth/-/token/reset", tt.values))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decode(t, rec).Message)
		})
	}
}

func TestUploadViewAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ns, token := env.register(t, "a@example.com")

	rec := env.upload(t, "a@example.com", token, map[string]string{"type": "text", "name": "hello"}, "hello.txt", "<b>hi</b> & <i>bye</i>")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Equal(t, "Created", resp.Code)
	assert.Equal(t, "hello.txt", resp.Body["Content-ID"])
	assert.Equal(t, ns, resp.Body["Namespace-ID"])
	assert.Equal(t, "/-/"+ns+"/hello.txt", resp.Body["Location"])

	// Rendered text view escapes the first occurrence of each character.
	rec = env.do(httptest.NewRequest(http.MethodGet, "/-/"+ns+"/hello.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "&lt;b&gt;hi</b> &amp; <i>bye</i>")

	// Raw view streams the bytes as stored.
	rec = env.do(httptest.NewRequest(http.MethodGet, "/-/"+ns+"/hello.txt/raw", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<b>hi</b> & <i>bye</i>", rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Equal(t, "22", rec.Header().Get("Content-Length"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	// The same name cannot be reused.
	rec = env.upload(t, "a@example.com", token, map[string]string{"name": "hello"}, "other.txt", "x")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode(t, rec).Message, "'hello'")

	req := httptest.NewRequest(http.MethodDelete, "/v1/-/delete/hello.txt?email=a@example.com&token="+token, nil)
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decode(t, rec)
	assert.Equal(t, "deleted", resp.Code)
	assert.Equal(t, "/-/"+ns+"/hello.txt", resp.Body["Previous-Location"])

	exists, err := env.backend.Exists(context.Background(), storage.Key{Namespace: ns, ContentID: "hello.txt"})
	require.NoError(t, err)
	assert.False(t, exists)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/-/"+ns+"/hello.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgNotFound, decode(t, rec).Message)

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/v1/-/delete/hello.txt?email=a@example.com&token="+token, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteWithFormBody(t *testing.T) {
	env := newTestEnv(t)
	ns, token := env.register(t, "a@example.com")

	rec := env.upload(t, "a@example.com", token, map[string]string{"name": "form"}, "form.txt", "x")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(formRequest(http.MethodDelete, "/v1/-/delete/form.txt", url.Values{
		"email": {"a@example.com"}, "token": {token},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "/-/"+ns+"/form.txt", decode(t, rec).Body["Previous-Location"])

	rec = env.do(formRequest(http.MethodDelete, "/v1/-/delete/form.txt", url.Values{
		"email": {"a@example.com"}, "token": {token},
	}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadGeneratedIDAndBinaryHint(t *testing.T) {
	env := newTestEnv(t)
	ns, token := env.register(t, "a@example.com")

	rec := env.upload(t, "a@example.com", token, map[string]string{"type": "binary", "expire_after": "1h"}, "pic.png", "\x89PNG")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec).Body["Content-ID"]
	assert.Len(t, id, 40+len(".png"))

	entry, err := env.repos.Content.Get(context.Background(), ns, id)
	require.NoError(t, err)
	require.NotNil(t, entry.Expire)

	for _, path := range []string{"/-/" + ns + "/" + id, "/-/" + ns + "/" + id + "/raw"} {
		rec = env.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"), path)
		assert.Equal(t, "\x89PNG", rec.Body.String(), path)
	}
}

func TestImageView(t *testing.T) {
	env := newTestEnv(t)
	ns, token := env.register(t, "a@example.com")

	rec := env.upload(t, "a@example.com", token, map[string]string{"type": "IMAGE", "name": "cat"}, "cat.png", "\x89PNGdata")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/-/"+ns+"/cat.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNGdata", rec.Body.String())
}

func TestUploadMissingFile(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "a@example.com")

	rec := env.upload(t, "a@example.com", token, nil, "", "")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "UnsupportedMediaType", decode(t, rec).Code)
}

func TestViewerNotFound(t *testing.T) {
	env := newTestEnv(t)
	ns, token := env.register(t, "a@example.com")

	rec := env.upload(t, "a@example.com", token, map[string]string{"name": "gone"}, "gone.txt", "x")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, env.backend.Remove(context.Background(), storage.Key{Namespace: ns, ContentID: "gone.txt"}))

	for _, path := range []string{
		"/-/unknown/file.txt",
		"/-/" + ns + "/missing.txt",
		"/-/" + ns + "/gone.txt",
		"/-/" + ns + "/gone.txt/raw",
	} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestJSONBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/-/user/register",
		strings.NewReader(`{"email":"json@example.com","password":"hunter2","namespace":"jsonspace"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "jsonspace", decode(t, rec).Body["Namespace-ID"])
}

func TestBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, withMaxBody(64))

	rec := env.do(formRequest(http.MethodPost, "/v1/auth/-/user/register", url.Values{
		"email":    {"a@example.com"},
		"password": {strings.Repeat("x", 256)},
	}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PayloadTooLarge", decode(t, rec).Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, withRateLimit())

	req := func(ip string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/v1/-/health-check", nil)
		r.RemoteAddr = ip + ":1234"
		return r
	}

	assert.Equal(t, http.StatusOK, env.do(req("192.0.2.1")).Code)

	rec := env.do(req("192.0.2.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "TooManyRequests", decode(t, rec).Code)

	assert.Equal(t, http.StatusOK, env.do(req("192.0.2.2")).Code)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodPut, "/v1/-/health-check", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{err: domain.ErrInvalidEmail, wantStatus: http.StatusBadRequest},
		{err: fmt.Errorf("%w: namespace", service.ErrIdentifierExhausted), wantStatus: http.StatusServiceUnavailable},
		{err: &service.NameConflictError{Name: "x"}, wantStatus: http.StatusConflict},
		{err: auth.ErrEmailUnknown, wantStatus: http.StatusConflict},
		{err: &http.MaxBytesError{Limit: 1}, wantStatus: http.StatusRequestEntityTooLarge},
		{err: io.ErrUnexpectedEOF, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, toAPIError(tt.err).Status)
		})
	}
}

func TestRecoverer(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestVerbs(t *testing.T) {
	tests := []struct {
		name   string
		verb   verb
		method string
	}{
		{name: "get", verb: verbGet, method: http.MethodGet},
		{name: "head", verb: verbHead, method: http.MethodHead},
		{name: "post", verb: verbPost, method: http.MethodPost},
		{name: "put", verb: verbPut, method: http.MethodPut},
		{name: "patch", verb: verbPatch, method: http.MethodPatch},
		{name: "delete", verb: verbDelete, method: http.MethodDelete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			tt.verb(r, "/x", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, "/x", nil))
			assert.Equal(t, http.StatusNoContent, rec.Code)
		})
	}
}

func TestRoutesAreMounted(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{method: http.MethodPost, path: "/v1/auth/-/user/register"},
		{method: http.MethodPost, path: "/v1/auth/-/token/recover"},
		{method: http.MethodPost, path: "/v1/auth/-/token/reset"},
		{method: http.MethodPost, path: "/v1/-/upload"},
		{method: http.MethodDelete, path: "/v1/-/delete/x.txt"},
		{method: http.MethodGet, path: "/v1/-/health-check"},
	}
	require.Len(t, routes, len(tests)+2)

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := env.do(httptest.NewRequest(tt.method, tt.path, nil))
			assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code)
			assert.NotEqual(t, "NotFound", decode(t, rec).Code)
		})
	}
}
