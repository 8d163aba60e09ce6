package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/pkg/crypto"
)

// Parameter names read by the guard.
const (
	ParamEmail    = "email"
	ParamPassword = "password"
	ParamToken    = "token"
)

// Params gives read access to the merged request parameters.
type Params interface {
	Get(key string) (string, bool)
}

// UserStore is the part of the identity store the guard needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Check names one credential verification.
type Check string

const (
	// Email requires a registered email address.
	Email Check = "email"

	// Password requires the account password.
	Password Check = "password"

	// Token requires the account token.
	Token Check = "token"
)

// Guard runs credential checks against the identity store.
type Guard struct {
	users  UserStore
	logger zerolog.Logger
}

// NewGuard creates a new Guard.
func NewGuard(users UserStore, logger zerolog.Logger) *Guard {
	return &Guard{
		users:  users,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Verify runs checks in order and returns the authenticated user.
// Failures are *Error values; store failures are returned as they are.
func (g *Guard) Verify(ctx context.Context, p Params, checks ...Check) (*domain.User, error) {
	var user *domain.User

	for _, check := range checks {
		if user == nil {
			var err error
			if user, err = g.lookup(ctx, p); err != nil {
				return nil, err
			}
		}

		switch check {
		case Email:
			// lookup already verified the address.
		case Password:
			if err := verifyPassword(p, user); err != nil {
				return nil, err
			}
		case Token:
			if err := verifyToken(p, user); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown auth check %q", check)
		}
	}

	return user, nil
}

func (g *Guard) lookup(ctx context.Context, p Params) (*domain.User, error) {
	email, ok := p.Get(ParamEmail)
	if !ok {
		return nil, ErrEmailMissing
	}

	user, err := g.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrEmailUnknown
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

func verifyPassword(p Params, user *domain.User) error {
	password, ok := p.Get(ParamPassword)
	if !ok {
		return ErrPasswordMissing
	}

	match, err := crypto.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		return ErrPasswordMismatch
	}
	return nil
}

func verifyToken(p Params, user *domain.User) error {
	token, ok := p.Get(ParamToken)
	if !ok {
		return ErrTokenMissing
	}
	if !crypto.EqualTokens(token, user.Token) {
		return ErrTokenMismatch
	}
	return nil
}

// ErrorWriter writes err as the response to r.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware verifies checks before calling next and stores the user in the
// request context. params extracts the request parameters.
func (g *Guard) Middleware(params func(*http.Request) Params, fail ErrorWriter, checks ...Check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := g.Verify(r.Context(), params(r), checks...)
			if err != nil {
				if _, ok := AsError(err); ok {
					g.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("request rejected")
				}
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

type contextKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the user stored by Middleware.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(contextKey{}).(*domain.User)
	return user, ok && user != nil
}
