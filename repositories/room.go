//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"fmt"
	"sort"
	"time"

	"chat-gateway/domain/chat"
	"chat-gateway/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IRoomRepository interface {
	CreateRoom(name, description, passwordHash string) (string, error)
	EnsureRoom(roomID string) error
	GetRoom(roomID string) (chat.Room, error)
	ListRooms() ([]chat.Room, error)
	Exists(roomID string) (bool, error)
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) IRoomRepository {
	return &RoomRepository{db: db}
}

type diskRoom struct {
	ID           string    `cbor:"id"`
	Name         string    `cbor:"name"`
	Description  string    `cbor:"description"`
	PasswordHash string    `cbor:"password_hash"`
	CreatedAt    time.Time `cbor:"created_at"`
}

// CreateRoom persists a room and returns the generated room id. An empty
// passwordHash means the room is open to everyone.
func (r *RoomRepository) CreateRoom(name, description, passwordHash string) (string, error) {
	room := diskRoom{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  description,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := encMode.Marshal(room)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("room:"+room.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrPersistence, err)
	}
	return room.ID, nil
}

// EnsureRoom creates an open room under the requested id if none exists.
// Rooms come to life on first join; only password-protected rooms need to
// be created explicitly beforehand.
func (r *RoomRepository) EnsureRoom(roomID string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		key := []byte("room:" + roomID)
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		data, err := encMode.Marshal(diskRoom{
			ID:        roomID,
			Name:      roomID,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrPersistence, err)
	}
	return nil
}

// GetRoom retrieves a room by id. A missing key surfaces as ErrRoomNotFound.
func (r *RoomRepository) GetRoom(roomID string) (chat.Room, error) {
	var room diskRoom

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("room:" + roomID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &room)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return chat.Room{}, errors.ErrRoomNotFound
		}
		return chat.Room{}, fmt.Errorf("%w: %s", errors.ErrPersistence, err)
	}

	return chat.Room{
		ID:           room.ID,
		Name:         room.Name,
		Description:  room.Description,
		PasswordHash: room.PasswordHash,
		CreatedAt:    room.CreatedAt,
	}, nil
}

// ListRooms returns every room, newest first.
func (r *RoomRepository) ListRooms() ([]chat.Room, error) {
	var rooms []chat.Room

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("room:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var room diskRoom
			err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &room)
			})
			if err != nil {
				return err
			}
			rooms = append(rooms, chat.Room{
				ID:           room.ID,
				Name:         room.Name,
				Description:  room.Description,
				PasswordHash: room.PasswordHash,
				CreatedAt:    room.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrPersistence, err)
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (r *RoomRepository) Exists(roomID string) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("room:" + roomID))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %s", errors.ErrPersistence, err)
	}
	return true, nil
}
