//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-gateway/domain/chat"
	"chat-gateway/domain/event"
)

// EventSink is the delivery primitive for one connected session. A sink that
// cannot accept an event (closed, buffer full) drops it silently and reports
// the drop through its error, never by blocking.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the authoritative membership structure. It is the single
// serialization point for joins, leaves, disconnects, and fan-out snapshots.
// All mutations are idempotent.
type IRegistry interface {
	Bind(connectionID string, sink EventSink)
	Add(roomID chat.RoomID, connectionID string)
	Remove(roomID chat.RoomID, connectionID string) bool
	MembersOf(roomID chat.RoomID) []string
	RoomsOf(connectionID string) []chat.RoomID
	SinksForRoom(roomID chat.RoomID, excludeConnectionID string) []EventSink
	SinkOf(connectionID string) (EventSink, bool)
	RemoveSession(connectionID string) []chat.RoomID
}

// IBroadcaster fans an event out to every current occupant of a room.
type IBroadcaster interface {
	Emit(ctx context.Context, roomID chat.RoomID, e event.DomainEvent, excludeConnectionID string)
	EmitTo(ctx context.Context, connectionID string, e event.DomainEvent)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself. Supervision handles panics and restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
