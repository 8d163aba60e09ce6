package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/pkg/crypto"
)

type mapParams map[string]string

func (m mapParams) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

type fakeUsers struct {
	users map[string]*domain.User
	err   error
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	hash, err := crypto.HashPassword("hunter2")
	require.NoError(t, err)

	users := &fakeUsers{users: map[string]*domain.User{
		"a@example.com": domain.NewUser("a@example.com", hash, "tok-a", "ns01", domain.RoleUser),
	}}
	return NewGuard(users, zerolog.Nop())
}

func TestGuard_Verify(t *testing.T) {
	g := newTestGuard(t)

	tests := []struct {
		name    string
		params  mapParams
		checks  []Check
		wantErr *Error
	}{
		{
			name:   "email only",
			params: mapParams{"email": "a@example.com"},
			checks: []Check{Email},
		},
		{
			name:    "email missing",
			params:  mapParams{},
			checks:  []Check{Email},
			wantErr: ErrEmailMissing,
		},
		{
			name:    "email unknown",
			params:  mapParams{"email": "b@example.com"},
			checks:  []Check{Email},
			wantErr: ErrEmailUnknown,
		},
		{
			name:   "password ok",
			params: mapParams{"email": "a@example.com", "password": "hunter2"},
			checks: []Check{Email, Password},
		},
		{
			name:    "password missing",
			params:  mapParams{"email": "a@example.com"},
			checks:  []Check{Email, Password},
			wantErr: ErrPasswordMissing,
		},
		{
			name:    "password wrong",
			params:  mapParams{"email": "a@example.com", "password": "nope"},
			checks:  []Check{Email, Password},
			wantErr: ErrPasswordMismatch,
		},
		{
			name:   "token ok",
			params: mapParams{"email": "a@example.com", "token": "tok-a"},
			checks: []Check{Email, Token},
		},
		{
			name:    "token missing",
			params:  mapParams{"email": "a@example.com"},
			checks:  []Check{Email, Token},
			wantErr: ErrTokenMissing,
		},
		{
			name:    "token wrong",
			params:  mapParams{"email": "a@example.com", "token": "tok-b"},
			checks:  []Check{Email, Token},
			wantErr: ErrTokenMismatch,
		},
		{
			name:    "email checked before token",
			params:  mapParams{"token": "tok-a"},
			checks:  []Check{Email, Token},
			wantErr: ErrEmailMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := g.Verify(context.Background(), tt.params, tt.checks...)
			if tt.wantErr != nil {
				require.Error(t, err)
				authErr, ok := AsError(err)
				require.True(t, ok)
				assert.Same(t, tt.wantErr, authErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a@example.com", user.Email)
		})
	}
}

func TestGuard_StatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, ErrEmailMissing.Status)
	assert.Equal(t, http.StatusConflict, ErrEmailUnknown.Status)
	assert.Equal(t, http.StatusUnauthorized, ErrPasswordMismatch.Status)
	assert.Equal(t, http.StatusUnauthorized, ErrTokenMismatch.Status)
}

func TestGuard_StoreFailure(t *testing.T) {
	storeErr := errors.New("database is locked")
	g := NewGuard(&fakeUsers{err: storeErr}, zerolog.Nop())

	_, err := g.Verify(context.Background(), mapParams{"email": "a@example.com"}, Email)
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	_, isAuth := AsError(err)
	assert.False(t, isAuth)
}

func TestGuard_Middleware(t *testing.T) {
	g := newTestGuard(t)

	params := func(r *http.Request) Params {
		return mapParams{"email": r.URL.Query().Get("email"), "token": r.URL.Query().Get("token")}
	}
	fail := func(w http.ResponseWriter, r *http.Request, err error) {
		authErr, _ := AsError(err)
		w.WriteHeader(authErr.Status)
	}

	var seen *domain.User
	h := g.Middleware(params, fail, Email, Token)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/?email=a@example.com&token=tok-a", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "ns01", seen.Namespace)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/?email=a@example.com&token=bad", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
