package docfields

import (
	"context"
)

// EventKind identifies what changed in a session.
type EventKind string

const (
	EventDocumentsChanged EventKind = "documentsChanged" // intake, removal, reorder or normalization
	EventFieldCreated     EventKind = "fieldCreated"
	EventFieldUpdated     EventKind = "fieldUpdated"
	EventFieldDeleted     EventKind = "fieldDeleted"
	EventFieldsRemoved    EventKind = "fieldsRemoved" // cascade after a document removal
)

// Event describes one change. Version is the registry version for document
// events and the field version otherwise.
type Event struct {
	Kind       EventKind
	DocumentID string
	FieldID    string
	Version    uint64
}

const subscriberBuffer = 32

// Subscribe returns a channel of session changes. The channel is closed when
// ctx is done. Events are dropped for a subscriber that does not keep up.
func (s *Session) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	changed := s.registry.Changed()
	go func() {
		for {
			select {
			case <-ctx.Done():
				s.subsMu.Lock()
				delete(s.subs, id)
				close(ch)
				s.subsMu.Unlock()
				return
			case <-changed:
				changed = s.registry.Changed()
				s.publishTo(id, Event{Kind: EventDocumentsChanged, Version: s.registry.Version()})
			}
		}
	}()
	return ch
}

// publish sends e to every subscriber without blocking.
func (s *Session) publish(e Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Session) publishTo(id uint64, e Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		select {
		case ch <- e:
		default:
		}
	}
}
