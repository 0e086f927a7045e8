//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"chat-gateway/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetPage(room string, skip, limit int) ([]DiskMessage, error)
}

// encMode keeps nanosecond precision on timestamps; the default CBOR time
// encoding truncates to whole seconds.
var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// DiskMessage is the storage-level representation of a chat message.
type DiskMessage struct {
	ID       uuid.UUID `cbor:"id"`
	Room     string    `cbor:"room"`
	Author   string    `cbor:"author"`
	Nickname string    `cbor:"nickname"`
	Content  string    `cbor:"content"`
	At       time.Time `cbor:"at"`
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.Room,
		message.At.UnixNano(),
		message.ID,
	)
	bytes, err := encMode.Marshal(message)
	if err != nil {
		return err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrPersistence, err)
	}
	return nil
}

// GetPage retrieves one page of messages for a room, newest first.
// Thanks to the padded timestamp in the key, a reverse prefix scan yields
// messages naturally sorted by time. The scan discards the `skip` newest
// entries and then collects up to `limit` messages.
func (m MessageRepository) GetPage(room string, skip, limit int) ([]DiskMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	var byteMessages [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", room)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for the prefix, then walk back
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		it.Seek(seekKey)

		skipped := 0
		for ; it.ValidForPrefix(prefix); it.Next() {
			if skipped < skip {
				skipped++
				continue
			}
			if len(byteMessages) == limit {
				m.log.Debug(fmt.Sprintf("Page limit of %d messages reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrPersistence, err)
	}

	diskMessages := make([]DiskMessage, 0, len(byteMessages))
	for _, b := range byteMessages {
		var message DiskMessage
		if err = cbor.Unmarshal(b, &message); err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrPersistence, err)
		}
		diskMessages = append(diskMessages, message)
	}
	return diskMessages, nil
}
