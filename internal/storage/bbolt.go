package storage

import (
	"sort"
	"time"

	"chatty/internal/models"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var (
	bucketUsers = []byte("users")
)

// BboltStorage caches the peer directory between runs. Messages are never
// written here.
type BboltStorage struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open bbolt db")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketUsers)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create buckets")
	}

	return &BboltStorage{db: db, now: time.Now}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// UpsertUsers replaces the cached directory with users.
func (s *BboltStorage) UpsertUsers(users []models.User) error {
	cachedAt := s.now().Unix()
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketUsers); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(bucketUsers)
		if err != nil {
			return err
		}

		for _, u := range users {
			dbUser := &DBUser{
				ID:         u.ID,
				FullName:   u.FullName,
				Email:      u.Email,
				ProfilePic: u.ProfilePic,
				CachedAt:   cachedAt,
			}
			data, err := dbUser.MarshalBinary()
			if err != nil {
				return errors.Wrapf(err, "failed to marshal user %s", u.ID)
			}
			if err := b.Put(dbUser.Key(), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListUsers returns the cached directory ordered by name.
func (s *BboltStorage) ListUsers() ([]models.User, error) {
	var users []models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		return b.ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return errors.Wrapf(err, "corrupt user %s", string(k))
			}
			users = append(users, models.User{
				ID:         dbUser.ID,
				FullName:   dbUser.FullName,
				Email:      dbUser.Email,
				ProfilePic: dbUser.ProfilePic,
			})
			return nil
		})
	})

	sort.Slice(users, func(i, j int) bool {
		return users[i].FullName < users[j].FullName
	})
	return users, err
}

// GetUser returns a single cached user.
func (s *BboltStorage) GetUser(id string) (models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(id))
		if data == nil {
			return models.ErrNotFound
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		user = models.User{
			ID:         dbUser.ID,
			FullName:   dbUser.FullName,
			Email:      dbUser.Email,
			ProfilePic: dbUser.ProfilePic,
		}
		return nil
	})
	return user, err
}
