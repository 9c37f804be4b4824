package chat

import (
	"context"

	"chatty/internal/models"

	"github.com/pkg/errors"
)

// LoadUsers refreshes the peer directory. When the backend is unreachable the
// last cached directory is used instead and no error is returned.
func (s *Store) LoadUsers(ctx context.Context) error {
	s.update(func() { s.usersBusy = true })

	users, err := s.peers.ListUsers(ctx)
	switch {
	case err == nil && s.cache != nil:
		if cerr := s.cache.UpsertUsers(users); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("failed to cache users")
		}
	case err != nil && s.cache != nil:
		cached, cerr := s.cache.ListUsers()
		if cerr == nil && len(cached) > 0 {
			s.logger.Warn().Err(err).Int("cached", len(cached)).Msg("using cached users")
			users, err = cached, nil
		}
	}

	s.update(func() {
		s.usersBusy = false
		if err != nil {
			return
		}
		s.users = users
		for _, u := range users {
			s.directory.Set(u.ID, u)
		}
	})

	if err != nil {
		return &FetchError{Err: err}
	}
	return nil
}

func (s *Store) Users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, len(s.users))
	copy(out, s.users)
	return out
}

// User looks up a peer loaded by LoadUsers. Before the first load, or when
// the directory misses, the cache is consulted.
func (s *Store) User(id string) (models.User, bool) {
	if u, err := s.directory.Get(id); err == nil {
		return u, true
	}
	if s.cache == nil {
		return models.User{}, false
	}

	u, err := s.cache.GetUser(id)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn().Err(err).Str("peer", id).Msg("failed to read cached user")
		}
		return models.User{}, false
	}
	s.directory.Set(u.ID, u)
	return u, true
}

func (s *Store) UsersLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usersBusy
}
