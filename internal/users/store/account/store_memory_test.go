package account

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"usermgmt/internal/users/models"
	id "usermgmt/pkg/domain"
	dErrors "usermgmt/pkg/domain-errors"
	"usermgmt/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newAccount(name, email, phone, username string, createdAt time.Time) *models.Account {
	acc, err := models.NewAccount(models.NewAccountParams{
		ID:             id.NewUserID(),
		FullName:       name,
		Email:          email,
		Phone:          phone,
		Username:       username,
		PasswordHash:   "hash",
		DateOfBirth:    time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC),
		TermsVersion:   "v1",
		PrivacyVersion: "v1",
	}, createdAt)
	s.Require().NoError(err)
	return acc
}

// =============================================================================
// Lookups and uniqueness
// =============================================================================
// Justification: the directory's uniqueness checks are advisory; the store is
// the backstop and must reject duplicates itself.

func (s *InMemoryStoreSuite) TestLookups() {
	acc := s.newAccount("Jane Doe", "jane@example.com", "+447700900123", "JaneD", s.now)
	s.Require().NoError(s.store.Create(s.ctx, acc))

	s.Run("by id", func() {
		found, err := s.store.FindByID(s.ctx, acc.ID())
		s.Require().NoError(err)
		s.Equal(acc.Snapshot(), found.Snapshot())
	})

	s.Run("by email, phone and username", func() {
		_, err := s.store.FindByEmail(s.ctx, " JANE@example.com ")
		s.NoError(err)
		_, err = s.store.FindByPhone(s.ctx, "+447700900123")
		s.NoError(err)
		_, err = s.store.FindByUsername(s.ctx, "janed")
		s.NoError(err)
	})

	s.Run("unknown values return ErrNotFound", func() {
		_, err := s.store.FindByID(s.ctx, id.NewUserID())
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByEmail(s.ctx, "nobody@example.com")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByUsername(s.ctx, "")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestUniqueness() {
	first := s.newAccount("Jane Doe", "jane@example.com", "+447700900123", "janed", s.now)
	s.Require().NoError(s.store.Create(s.ctx, first))

	cases := []struct {
		name    string
		account *models.Account
	}{
		{"duplicate email", s.newAccount("Other", "jane@example.com", "+447700900999", "", s.now)},
		{"duplicate phone", s.newAccount("Other", "other@example.com", "+447700900123", "", s.now)},
		{"duplicate username in different case", s.newAccount("Other", "other@example.com", "+447700900999", "JANED", s.now)},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			err := s.store.Create(s.ctx, tc.account)
			s.ErrorIs(err, sentinel.ErrAlreadyUsed)
			_, err = s.store.FindByID(s.ctx, tc.account.ID())
			s.ErrorIs(err, sentinel.ErrNotFound)
		})
	}

	s.Run("accounts without username do not collide", func() {
		a := s.newAccount("Anon One", "one@example.com", "+15550000001", "", s.now)
		b := s.newAccount("Anon Two", "two@example.com", "+15550000002", "", s.now)
		s.NoError(s.store.Create(s.ctx, a))
		s.NoError(s.store.Create(s.ctx, b))
	})
}

// =============================================================================
// Execute
// =============================================================================
// Justification: Execute is where optimistic concurrency becomes atomic.

func (s *InMemoryStoreSuite) TestExecute() {
	acc := s.newAccount("Jane Doe", "jane@example.com", "+447700900123", "", s.now)
	s.Require().NoError(s.store.Create(s.ctx, acc))

	s.Run("validate failure leaves record unchanged", func() {
		_, err := s.store.Execute(s.ctx, acc.ID(),
			func(a *models.Account) error { return a.CanUpdateProfile("New Name", 7) },
			func(a *models.Account) { s.Fail("mutate must not run") },
		)
		s.True(dErrors.HasCode(err, dErrors.CodeConcurrencyConflict))

		found, err := s.store.FindByID(s.ctx, acc.ID())
		s.Require().NoError(err)
		s.Equal("Jane Doe", found.FullName())
		s.Equal(1, found.ProfileVersion())
	})

	s.Run("successful mutation is persisted", func() {
		updated, err := s.store.Execute(s.ctx, acc.ID(),
			func(a *models.Account) error { return a.CanUpdateProfile("New Name", 1) },
			func(a *models.Account) { a.ApplyProfileUpdate("New Name", s.now.Add(time.Hour)) },
		)
		s.Require().NoError(err)
		s.Equal(2, updated.ProfileVersion())

		found, err := s.store.FindByID(s.ctx, acc.ID())
		s.Require().NoError(err)
		s.Equal("New Name", found.FullName())
		s.Equal(2, found.ProfileVersion())
	})

	s.Run("unknown id", func() {
		_, err := s.store.Execute(s.ctx, id.NewUserID(),
			func(*models.Account) error { return nil },
			func(*models.Account) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestConcurrentVersionedUpdates() {
	acc := s.newAccount("Jane Doe", "jane@example.com", "+447700900123", "", s.now)
	s.Require().NoError(s.store.Create(s.ctx, acc))

	const writers = 20
	var wg sync.WaitGroup
	var ok, conflicts atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(s.ctx, acc.ID(),
				func(a *models.Account) error { return a.CanUpdateProfile("Racing Name", 1) },
				func(a *models.Account) { a.ApplyProfileUpdate("Racing Name", s.now) },
			)
			switch {
			case err == nil:
				ok.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConcurrencyConflict):
				conflicts.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				s.Fail("unexpected not found")
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.Equal(int32(writers-1), conflicts.Load())
}

// =============================================================================
// List
// =============================================================================

func (s *InMemoryStoreSuite) TestList() {
	older := s.newAccount("Alice Smith", "alice@example.com", "+15550000001", "", s.now)
	middle := s.newAccount("Bob Jones", "bob@corp.example", "+15550000002", "", s.now.Add(time.Minute))
	newer := s.newAccount("Carol Smith", "carol@example.com", "+15550000003", "", s.now.Add(2*time.Minute))
	middle.Activate(s.now.Add(time.Minute))
	for _, a := range []*models.Account{older, middle, newer} {
		s.Require().NoError(s.store.Create(s.ctx, a))
	}

	s.Run("newest first with total", func() {
		items, total, err := s.store.List(s.ctx, models.ListFilter{Page: 1, PageSize: 10})
		s.Require().NoError(err)
		s.Equal(int64(3), total)
		s.Require().Len(items, 3)
		s.Equal(newer.ID(), items[0].ID())
		s.Equal(older.ID(), items[2].ID())
	})

	s.Run("free text matches name or email case-insensitively", func() {
		items, total, err := s.store.List(s.ctx, models.ListFilter{Page: 1, PageSize: 10, SearchTerm: "SMITH"})
		s.Require().NoError(err)
		s.Equal(int64(2), total)
		s.Len(items, 2)

		items, _, err = s.store.List(s.ctx, models.ListFilter{Page: 1, PageSize: 10, SearchTerm: "corp"})
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.Equal(middle.ID(), items[0].ID())
	})

	s.Run("exact status and role", func() {
		items, total, err := s.store.List(s.ctx, models.ListFilter{Page: 1, PageSize: 10, Status: "Active"})
		s.Require().NoError(err)
		s.Equal(int64(1), total)
		s.Equal(middle.ID(), items[0].ID())

		_, total, err = s.store.List(s.ctx, models.ListFilter{Page: 1, PageSize: 10, Role: "Admin"})
		s.Require().NoError(err)
		s.Zero(total)
	})

	s.Run("pagination", func() {
		items, total, err := s.store.List(s.ctx, models.ListFilter{Page: 2, PageSize: 2})
		s.Require().NoError(err)
		s.Equal(int64(3), total)
		s.Require().Len(items, 1)
		s.Equal(older.ID(), items[0].ID())

		items, _, err = s.store.List(s.ctx, models.ListFilter{Page: 5, PageSize: 2})
		s.Require().NoError(err)
		s.Empty(items)
	})
}
