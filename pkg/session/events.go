package session

import "github.com/goliatone/go-formflow/pkg/pages"

// EventKind classifies session notifications.
type EventKind string

const (
	// EventPhase reports a phase transition.
	EventPhase EventKind = "phase"
	// EventPosition reports a question index change.
	EventPosition EventKind = "position"
	// EventAnswer reports an answer, upload or payment change for FieldID.
	EventAnswer EventKind = "answer"
)

// Event is delivered to subscribers once the mutation that produced it has
// been applied and the session lock released.
type Event struct {
	Kind        EventKind
	Phase       Phase
	From        Phase
	Index       int
	Page        int
	FieldID     string
	AutoAdvance bool
}

// Subscribe registers fn for every subsequent event. The returned function
// removes the subscription.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) onPhase(from, to Phase) {
	page, _, _ := pages.Locate(s.pages, s.index)
	s.emit(Event{Kind: EventPhase, Phase: to, From: from, Index: s.index, Page: page})
}

// emit queues an event; the caller holds the lock.
func (s *Session) emit(event Event) {
	if s.closed || len(s.subscribers) == 0 {
		return
	}
	if event.Phase == "" {
		event.Phase = s.currentPhase()
	}
	s.pending = append(s.pending, event)
}

// unlock releases the session lock and then delivers queued events.
func (s *Session) unlock() {
	events := s.pending
	s.pending = nil
	var subs []subscriber
	if len(events) > 0 {
		subs = append(subs, s.subscribers...)
	}
	s.mu.Unlock()

	for _, event := range events {
		for _, sub := range subs {
			sub.fn(event)
		}
	}
}
