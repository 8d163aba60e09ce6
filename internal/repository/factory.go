package repository

import "context"

// Repositories holds all repository instances.
type Repositories struct {
	User      UserRepository
	Namespace NamespaceRepository
	Content   ContentRepository
}

// DatabaseHealth is an interface for database health checks.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
