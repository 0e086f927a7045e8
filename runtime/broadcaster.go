package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"chat-gateway/contract"
	"chat-gateway/domain/chat"
	"chat-gateway/domain/event"
)

// Broadcaster fans an event out to every session currently registered in a
// room. Delivery is best effort: a session that disconnected between the
// snapshot and the delivery is a silent drop, never an error to the caller.
//
// No ordering guarantee is made across rooms. Within a room, the membership
// snapshot is taken in one locked pass (see Registry.SinksForRoom).
type Broadcaster struct {
	log      *slog.Logger
	registry contract.IRegistry

	// OnDrop, when set, is invoked once per dropped delivery.
	OnDrop func()
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry) *Broadcaster {
	return &Broadcaster{log: log, registry: registry}
}

// Emit delivers an event to every occupant of a room, except the excluded
// connection (used to avoid echoing a join notice back to the joiner).
func (b *Broadcaster) Emit(ctx context.Context, roomID chat.RoomID, e event.DomainEvent, excludeConnectionID string) {
	sinks := b.registry.SinksForRoom(roomID, excludeConnectionID)
	for _, sink := range sinks {
		if err := sink.Consume(ctx, e); err != nil {
			b.drop()
			b.log.Debug(fmt.Sprintf("Dropped %s event for room %s", e.Name(), roomID), "error", err)
		}
	}
}

// EmitTo delivers an event to a single session. Unknown connections are a
// silent drop.
func (b *Broadcaster) EmitTo(ctx context.Context, connectionID string, e event.DomainEvent) {
	sink, ok := b.registry.SinkOf(connectionID)
	if !ok {
		return
	}
	if err := sink.Consume(ctx, e); err != nil {
		b.drop()
		b.log.Debug(fmt.Sprintf("Dropped %s event for connection %s", e.Name(), connectionID), "error", err)
	}
}

func (b *Broadcaster) drop() {
	if b.OnDrop != nil {
		b.OnDrop()
	}
}
