//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"fmt"
	"time"

	"chat-gateway/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(userID, email, nickname string) (string, error)
	GetUserByID(id string) (User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the domain-friendly representation of a user in the repository
// layer. Credential material lives with the external auth service, not here.
type User struct {
	ID        string    `cbor:"id"`
	UserID    string    `cbor:"user_id"`
	Email     string    `cbor:"email"`
	Nickname  string    `cbor:"nickname"`
	CreatedAt time.Time `cbor:"created_at"`
}

// CreateUser persists a user and returns the newly generated id.
func (u *UserRepository) CreateUser(userID, email, nickname string) (string, error) {
	user := User{
		ID:        uuid.NewString(),
		UserID:    userID,
		Email:     email,
		Nickname:  nickname,
		CreatedAt: time.Now().UTC(),
	}

	data, err := encMode.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("user:"+user.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrPersistence, err)
	}
	return user.ID, nil
}

// GetUserByID resolves the author of a message. A missing key surfaces as
// ErrUserNotFound.
func (u *UserRepository) GetUserByID(id string) (User, error) {
	var user User

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:" + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &user)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return User{}, errors.ErrUserNotFound
		}
		return User{}, fmt.Errorf("%w: %s", errors.ErrPersistence, err)
	}
	return user, nil
}
