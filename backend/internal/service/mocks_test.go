package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/itchan-dev/accounts/backend/internal/utils/email"
	"github.com/itchan-dev/accounts/shared/domain"
	internal_errors "github.com/itchan-dev/accounts/shared/errors"
)

// --- Mocks ---
// Defaults behave like an in-memory store; set a Func field to override.

type MockUserStorage struct {
	mu    sync.Mutex
	users map[domain.UserId]domain.User

	FindUserFunc   func(ctx context.Context, query domain.UserQuery) (*domain.User, error)
	InsertUserFunc func(ctx context.Context, draft domain.UserDraft) (domain.User, error)
	UpdateUserFunc func(ctx context.Context, user domain.User) (domain.User, error)
	FindUsersFunc  func(ctx context.Context, page, pageSize int) ([]domain.User, error)
	CountUsersFunc func(ctx context.Context) (int, error)
	DeleteUserFunc func(ctx context.Context, id domain.UserId) error
}

func NewMockUserStorage() *MockUserStorage {
	return &MockUserStorage{users: make(map[domain.UserId]domain.User)}
}

func (m *MockUserStorage) put(user domain.User) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.Id == "" {
		user.Id = uuid.NewString()
	}
	m.users[user.Id] = user
	return user
}

func (m *MockUserStorage) get(id domain.UserId) (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	return user, ok
}

func (m *MockUserStorage) FindUser(ctx context.Context, query domain.UserQuery) (*domain.User, error) {
	if m.FindUserFunc != nil {
		return m.FindUserFunc(ctx, query)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if query.Id == "" && query.Email == "" {
		return nil, internal_errors.InvalidOperation("Either id or email must be provided")
	}
	for _, user := range m.users {
		if (query.Id != "" && user.Id == query.Id) || (query.Email != "" && user.Email == strings.ToLower(query.Email)) {
			found := user
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MockUserStorage) InsertUser(ctx context.Context, draft domain.UserDraft) (domain.User, error) {
	if m.InsertUserFunc != nil {
		return m.InsertUserFunc(ctx, draft)
	}
	return m.put(domain.User{
		Email:           draft.Email,
		PassHash:        draft.PassHash,
		Name:            draft.Name,
		IsEmailVerified: draft.IsEmailVerified,
		IsBlocked:       draft.IsBlocked,
		Role:            draft.Role,
		CreatedAt:       time.Now(),
	}), nil
}

func (m *MockUserStorage) UpdateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(ctx, user)
	}
	if _, ok := m.get(user.Id); !ok {
		return domain.User{}, internal_errors.NotFound("User")
	}
	return m.put(user), nil
}

func (m *MockUserStorage) FindUsers(ctx context.Context, page, pageSize int) ([]domain.User, error) {
	if m.FindUsersFunc != nil {
		return m.FindUsersFunc(ctx, page, pageSize)
	}
	return []domain.User{}, nil
}

func (m *MockUserStorage) CountUsers(ctx context.Context) (int, error) {
	if m.CountUsersFunc != nil {
		return m.CountUsersFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *MockUserStorage) DeleteUser(ctx context.Context, id domain.UserId) error {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return internal_errors.NotFound("User")
	}
	delete(m.users, id)
	return nil
}

type MockBlacklistStorage struct {
	mu      sync.Mutex
	entries map[string]domain.BlacklistEntry

	CreateBlacklistEntryFunc func(ctx context.Context, token string, expiresAt time.Time) (domain.BlacklistEntry, error)
	FindBlacklistEntryFunc   func(ctx context.Context, token string) (*domain.BlacklistEntry, error)
}

func NewMockBlacklistStorage() *MockBlacklistStorage {
	return &MockBlacklistStorage{entries: make(map[string]domain.BlacklistEntry)}
}

func (m *MockBlacklistStorage) CreateBlacklistEntry(ctx context.Context, token string, expiresAt time.Time) (domain.BlacklistEntry, error) {
	if m.CreateBlacklistEntryFunc != nil {
		return m.CreateBlacklistEntryFunc(ctx, token, expiresAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[token]; ok {
		return domain.BlacklistEntry{}, internal_errors.AlreadyExists("BlacklistToken")
	}
	entry := domain.BlacklistEntry{Id: uuid.NewString(), Token: token, ExpiresAt: expiresAt}
	m.entries[token] = entry
	return entry, nil
}

func (m *MockBlacklistStorage) FindBlacklistEntry(ctx context.Context, token string) (*domain.BlacklistEntry, error) {
	if m.FindBlacklistEntryFunc != nil {
		return m.FindBlacklistEntryFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[token]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *MockBlacklistStorage) has(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[token]
	return ok
}

type MockEmailOutbox struct {
	mu     sync.Mutex
	events []domain.EmailEventDraft

	CreateEmailEventFunc func(ctx context.Context, draft domain.EmailEventDraft) (domain.EmailEvent, error)
}

func (m *MockEmailOutbox) CreateEmailEvent(ctx context.Context, draft domain.EmailEventDraft) (domain.EmailEvent, error) {
	if m.CreateEmailEventFunc != nil {
		return m.CreateEmailEventFunc(ctx, draft)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, draft)
	return domain.EmailEvent{Id: uuid.NewString(), EventName: draft.EventName, Payload: draft.Payload, Status: domain.EmailEventPending}, nil
}

func (m *MockEmailOutbox) last() domain.EmailEventDraft {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return domain.EmailEventDraft{}
	}
	return m.events[len(m.events)-1]
}

func (m *MockEmailOutbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type MockBlacklistCache struct {
	UpdateFunc func(ctx context.Context) error
	updates    int
}

func (m *MockBlacklistCache) Update(ctx context.Context) error {
	m.updates++
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx)
	}
	return nil
}

type MockEmailEventStorage struct {
	PendingEmailEventsFunc          func(ctx context.Context, eventNames []string, limit int) ([]domain.EmailEvent, error)
	MarkEmailEventSentFunc          func(ctx context.Context, id domain.EventId) (bool, error)
	MarkEmailEventFailedAttemptFunc func(ctx context.Context, id domain.EventId, cause string, maxAttempts int) (domain.EmailEventStatus, error)
}

func (m *MockEmailEventStorage) PendingEmailEvents(ctx context.Context, eventNames []string, limit int) ([]domain.EmailEvent, error) {
	if m.PendingEmailEventsFunc != nil {
		return m.PendingEmailEventsFunc(ctx, eventNames, limit)
	}
	return nil, nil
}

func (m *MockEmailEventStorage) MarkEmailEventSent(ctx context.Context, id domain.EventId) (bool, error) {
	if m.MarkEmailEventSentFunc != nil {
		return m.MarkEmailEventSentFunc(ctx, id)
	}
	return true, nil
}

func (m *MockEmailEventStorage) MarkEmailEventFailedAttempt(ctx context.Context, id domain.EventId, cause string, maxAttempts int) (domain.EmailEventStatus, error) {
	if m.MarkEmailEventFailedAttemptFunc != nil {
		return m.MarkEmailEventFailedAttemptFunc(ctx, id, cause, maxAttempts)
	}
	return domain.EmailEventPending, nil
}

type MockEmailSender struct {
	SendFunc func(ctx context.Context, message email.Message) error
	sent     []email.Message
}

func (m *MockEmailSender) Send(ctx context.Context, message email.Message) error {
	m.sent = append(m.sent, message)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, message)
	}
	return nil
}
