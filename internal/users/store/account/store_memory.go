// Package account persists user accounts. Memory, Postgres and Mongo
// implementations share the same contract: lookups return
// sentinel.ErrNotFound, duplicate identifiers return sentinel.ErrAlreadyUsed,
// and Execute applies validate-then-mutate atomically.
package account

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"usermgmt/internal/users/models"
	id "usermgmt/pkg/domain"
	"usermgmt/pkg/platform/sentinel"
)

// InMemoryStore keeps account records in maps guarded by a single RWMutex.
// Records are copied in and out so callers never share aggregate pointers.
type InMemoryStore struct {
	mu         sync.RWMutex
	records    map[id.UserID]models.Record
	byEmail    map[string]id.UserID
	byPhone    map[string]id.UserID
	byUsername map[string]id.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:    make(map[id.UserID]models.Record),
		byEmail:    make(map[string]id.UserID),
		byPhone:    make(map[string]id.UserID),
		byUsername: make(map[string]id.UserID),
	}
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(userID)
}

func (s *InMemoryStore) findLocked(userID id.UserID) (*models.Account, error) {
	rec, ok := s.records[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	return models.RestoreAccount(rec), nil
}

func (s *InMemoryStore) findByIndex(index map[string]id.UserID, key string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := index[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.findLocked(userID)
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	return s.findByIndex(s.byEmail, models.NormalizeEmail(email))
}

func (s *InMemoryStore) FindByPhone(_ context.Context, phone string) (*models.Account, error) {
	return s.findByIndex(s.byPhone, strings.TrimSpace(phone))
}

func (s *InMemoryStore) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	return s.findByIndex(s.byUsername, usernameKey(username))
}

// Create inserts a new account, enforcing the same uniqueness the SQL indexes do.
func (s *InMemoryStore) Create(_ context.Context, account *models.Account) error {
	rec := account.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("user id %s: %w", rec.ID, sentinel.ErrAlreadyUsed)
	}
	if _, exists := s.byEmail[rec.Email]; exists {
		return fmt.Errorf("email: %w", sentinel.ErrAlreadyUsed)
	}
	if _, exists := s.byPhone[rec.Phone]; exists {
		return fmt.Errorf("phone: %w", sentinel.ErrAlreadyUsed)
	}
	uname := usernameKey(rec.Username)
	if uname != "" {
		if _, exists := s.byUsername[uname]; exists {
			return fmt.Errorf("username: %w", sentinel.ErrAlreadyUsed)
		}
		s.byUsername[uname] = rec.ID
	}

	s.records[rec.ID] = rec
	s.byEmail[rec.Email] = rec.ID
	s.byPhone[rec.Phone] = rec.ID
	return nil
}

// Execute holds the write lock across validate and mutate. The stored record
// is replaced only when validate passes.
func (s *InMemoryStore) Execute(_ context.Context, userID id.UserID, validate func(*models.Account) error, mutate func(*models.Account)) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.findLocked(userID)
	if err != nil {
		return nil, err
	}
	if err := validate(account); err != nil {
		return nil, err
	}
	mutate(account)

	rec := account.Snapshot()
	s.records[userID] = rec
	return models.RestoreAccount(rec), nil
}

// List filters on free text (name or email, case-insensitive), exact role and
// exact status, newest first.
func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter) ([]*models.Account, int64, error) {
	term := strings.ToLower(strings.TrimSpace(filter.SearchTerm))

	s.mu.RLock()
	matched := make([]models.Record, 0, len(s.records))
	for _, rec := range s.records {
		if term != "" &&
			!strings.Contains(strings.ToLower(rec.FullName), term) &&
			!strings.Contains(rec.Email, term) {
			continue
		}
		if filter.Role != "" && rec.Role.String() != filter.Role {
			continue
		}
		if filter.Status != "" && rec.Status.String() != filter.Status {
			continue
		}
		matched = append(matched, rec)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := filter.Offset()
	if start >= len(matched) {
		return []*models.Account{}, total, nil
	}
	end := len(matched)
	if filter.PageSize > 0 && start+filter.PageSize < end {
		end = start + filter.PageSize
	}

	page := make([]*models.Account, 0, end-start)
	for _, rec := range matched[start:end] {
		page = append(page, models.RestoreAccount(rec))
	}
	return page, total, nil
}
