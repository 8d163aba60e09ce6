package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/metrics"
	"github.com/prn-tf/amethyst-cdn/internal/pkg/crypto"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
)

// DefaultNamespaceAttempts bounds namespace id generation when no limit is configured.
const DefaultNamespaceAttempts = 8

// IdentityService handles registration and token management.
type IdentityService struct {
	userRepo      repository.UserRepository
	namespaceRepo repository.NamespaceRepository
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	attempts      int
}

// NewIdentityService creates a new IdentityService.
// attempts bounds the number of generated namespace ids tried per registration.
func NewIdentityService(
	userRepo repository.UserRepository,
	namespaceRepo repository.NamespaceRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
	attempts int,
) *IdentityService {
	if attempts <= 0 {
		attempts = DefaultNamespaceAttempts
	}
	return &IdentityService{
		userRepo:      userRepo,
		namespaceRepo: namespaceRepo,
		metrics:       m,
		logger:        logger.With().Str("service", "identity").Logger(),
		attempts:      attempts,
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// RegisterInput contains the data needed to register a user.
type RegisterInput struct {
	Email    string
	Password string

	// Namespace is the requested namespace id. Empty means generate one.
	Namespace string
}

// RegisterOutput contains the result of a registration.
type RegisterOutput struct {
	User  *domain.User
	Token string
}

// =============================================================================
// Service Methods
// =============================================================================

// Register creates a namespace and a user owning it.
// The namespace is claimed first; if the user cannot be written it is released again.
func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if input.Password == "" {
		return nil, ErrPasswordRequired
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check user existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	namespaceID, err := s.claimNamespace(ctx, input.Email, input.Namespace)
	if err != nil {
		return nil, err
	}

	token, err := crypto.GenerateToken(crypto.RegisterTokenRounds)
	if err != nil {
		s.release(namespaceID)
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	passwordHash, err := crypto.HashPassword(input.Password)
	if err != nil {
		s.release(namespaceID)
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	count, err := s.userRepo.Count(ctx)
	if err != nil {
		s.release(namespaceID)
		s.logger.Error().Err(err).Msg("failed to count users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	role := domain.RoleUser
	if count == 0 {
		role = domain.RoleAdmin
	}

	user := domain.NewUser(input.Email, passwordHash, token, namespaceID, role)
	if err := s.userRepo.Create(ctx, user); err != nil {
		s.release(namespaceID)
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, domain.ErrUserAlreadyExists
		}
		s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("email", user.Email).
		Str("namespace", user.Namespace).
		Str("role", string(user.Role)).
		Msg("user registered")

	return &RegisterOutput{
		User:  user,
		Token: token,
	}, nil
}

// claimNamespace inserts the requested namespace, or a generated one.
func (s *IdentityService) claimNamespace(ctx context.Context, email, requested string) (string, error) {
	if requested != "" {
		if err := domain.ValidateNamespaceID(requested); err != nil {
			return "", err
		}
		if err := s.namespaceRepo.Create(ctx, domain.NewNamespace(requested, email)); err != nil {
			if errors.Is(err, domain.ErrNamespaceAlreadyExists) {
				return "", domain.ErrNamespaceAlreadyExists
			}
			s.logger.Error().Err(err).Str("namespace", requested).Msg("failed to create namespace")
			return "", fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		return requested, nil
	}

	for attempt := 0; attempt < s.attempts; attempt++ {
		id, err := crypto.GenerateNamespaceID(crypto.NamespaceIDBaseSize + attempt)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInternalError, err)
		}

		err = s.namespaceRepo.Create(ctx, domain.NewNamespace(id, email))
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, domain.ErrNamespaceAlreadyExists) {
			s.logger.Error().Err(err).Str("namespace", id).Msg("failed to create namespace")
			return "", fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		s.logger.Debug().Str("namespace", id).Int("attempt", attempt+1).Msg("namespace id collision")
	}

	s.metrics.IdentifierExhausted("namespace")
	s.logger.Error().Int("attempts", s.attempts).Msg("namespace id space exhausted")
	return "", fmt.Errorf("%w: namespace", ErrIdentifierExhausted)
}

// release deletes a namespace claimed by a registration that did not complete.
func (s *IdentityService) release(namespaceID string) {
	if err := s.namespaceRepo.Delete(context.Background(), namespaceID); err != nil {
		s.logger.Error().Err(err).Str("namespace", namespaceID).Msg("failed to release namespace")
	}
}

// Recover returns the stored token of an authenticated user unchanged.
func (s *IdentityService) Recover(ctx context.Context, user *domain.User) (string, error) {
	s.logger.Info().Str("email", user.Email).Msg("token recovered")
	return user.Token, nil
}

// Reset issues a new token for an authenticated user and replaces the stored one.
func (s *IdentityService) Reset(ctx context.Context, user *domain.User) (string, error) {
	token, err := crypto.GenerateToken(crypto.ResetTokenRounds)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.userRepo.UpdateToken(ctx, user.Email, token); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("email", user.Email).Msg("failed to update token")
		return "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("email", user.Email).Msg("token reset")
	return token, nil
}

// CountUsers returns the number of registered users.
func (s *IdentityService) CountUsers(ctx context.Context) (int64, error) {
	return s.userRepo.Count(ctx)
}

// ListUsers returns a page of registered users.
func (s *IdentityService) ListUsers(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	return s.userRepo.List(ctx, opts)
}
