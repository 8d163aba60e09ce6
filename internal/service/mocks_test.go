package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
	"github.com/prn-tf/amethyst-cdn/internal/storage"
)

// MockUserRepository is an in-memory repository.UserRepository.
type MockUserRepository struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	createErr error
	countErr  error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.users[user.Email]; exists {
		return domain.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[email]
	return ok, nil
}

func (m *MockUserRepository) UpdateToken(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Token = token
	return nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	return int64(len(m.users)), nil
}

func (m *MockUserRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &repository.ListResult[domain.User]{Total: int64(len(m.users)), Offset: opts.Offset, Limit: opts.Limit}
	for _, u := range m.users {
		result.Items = append(result.Items, u)
	}
	return result, nil
}

// MockNamespaceRepository is an in-memory repository.NamespaceRepository.
type MockNamespaceRepository struct {
	mu         sync.Mutex
	namespaces map[string]*domain.Namespace
	creates    int
}

func NewMockNamespaceRepository() *MockNamespaceRepository {
	return &MockNamespaceRepository{namespaces: make(map[string]*domain.Namespace)}
}

func (m *MockNamespaceRepository) Create(ctx context.Context, ns *domain.Namespace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if _, exists := m.namespaces[ns.ID]; exists {
		return domain.ErrNamespaceAlreadyExists
	}
	m.namespaces[ns.ID] = ns
	return nil
}

func (m *MockNamespaceRepository) Get(ctx context.Context, id string) (*domain.Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ns, ok := m.namespaces[id]; ok {
		return ns, nil
	}
	return nil, domain.ErrNamespaceNotFound
}

func (m *MockNamespaceRepository) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.namespaces[id]
	return ok, nil
}

func (m *MockNamespaceRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, id)
	return nil
}

// MockContentRepository is an in-memory repository.ContentRepository.
type MockContentRepository struct {
	mu        sync.Mutex
	entries   map[string]*domain.ContentEntry
	putErr    error
	deleteErr error
}

func NewMockContentRepository() *MockContentRepository {
	return &MockContentRepository{entries: make(map[string]*domain.ContentEntry)}
}

func (m *MockContentRepository) Put(ctx context.Context, entry *domain.ContentEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[entry.Key()] = entry
	return nil
}

func (m *MockContentRepository) Get(ctx context.Context, namespace, contentID string) (*domain.ContentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[domain.ContentKey(namespace, contentID)]; ok {
		return e, nil
	}
	return nil, domain.ErrContentNotFound
}

func (m *MockContentRepository) Delete(ctx context.Context, namespace, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.entries, domain.ContentKey(namespace, contentID))
	return nil
}

func (m *MockContentRepository) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

func (m *MockContentRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.ContentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ContentEntry
	for _, e := range m.entries {
		if e.IsExpired(before) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Expire.Before(*out[j].Expire) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockContentRepository) ListAfter(ctx context.Context, afterKey string, limit int) ([]*domain.ContentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ContentEntry
	for k, e := range m.entries {
		if k > afterKey {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockContentRepository) put(e *domain.ContentEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Key()] = e
}

func (m *MockContentRepository) has(namespace, contentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[domain.ContentKey(namespace, contentID)]
	return ok
}

// MockBackend is an in-memory storage.Backend with exclusive create.
type MockBackend struct {
	mu        sync.Mutex
	objects   map[storage.Key][]byte
	removeErr error
}

func NewMockBackend() *MockBackend {
	return &MockBackend{objects: make(map[storage.Key][]byte)}
}

func (m *MockBackend) Create(ctx context.Context, key storage.Key, r io.Reader) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[key]; exists {
		return 0, storage.ErrExists
	}
	m.objects[key] = data
	return int64(len(data)), nil
}

func (m *MockBackend) Open(ctx context.Context, key storage.Key) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockBackend) Stat(ctx context.Context, key storage.Key) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return int64(len(data)), nil
}

func (m *MockBackend) Exists(ctx context.Context, key storage.Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MockBackend) Remove(ctx context.Context, key storage.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	delete(m.objects, key)
	return nil
}

func (m *MockBackend) Location(key storage.Key) string {
	return "mem://" + key.String()
}

func (m *MockBackend) put(key storage.Key, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = []byte(data)
}

func (m *MockBackend) has(key storage.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// MockLocker is a testify mock of lock.Locker.
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) Release(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func testUser(namespace string) *domain.User {
	return domain.NewUser(namespace+"@example.com", "hash", "token-"+namespace, namespace, domain.RoleUser)
}

func textFile(s string) io.ReadSeeker {
	return strings.NewReader(s)
}

var (
	_ repository.UserRepository      = (*MockUserRepository)(nil)
	_ repository.NamespaceRepository = (*MockNamespaceRepository)(nil)
	_ repository.ContentRepository   = (*MockContentRepository)(nil)
	_ storage.Backend                = (*MockBackend)(nil)
)
