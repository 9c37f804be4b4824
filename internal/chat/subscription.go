package chat

import (
	"chatty/internal/models"
)

// Subscribe registers the store's handler for new peer messages. Calling it
// again replaces the previous handler, so at most one is ever registered.
func (s *Store) Subscribe() error {
	if _, ok := s.Active(); !ok {
		return ErrNoTarget
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.off != nil {
		s.off()
		s.off = nil
	}
	s.off = s.push.On(EventNewMessage, s.handlePush)

	s.update(func() { s.subscribed = true })
	return nil
}

// Unsubscribe removes the handler. It is a no-op when not subscribed.
func (s *Store) Unsubscribe() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.off == nil {
		return
	}
	s.off()
	s.off = nil

	s.update(func() { s.subscribed = false })
}

func (s *Store) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed
}

// handlePush appends w to the peer conversation when it was sent by the
// active peer. Everything else is left to whoever handles notifications.
func (s *Store) handlePush(w models.WireMessage) {
	msg := w.Resolve(s.selfID)

	var accepted bool
	s.mu.Lock()
	if s.hasTarget && !s.target.IsAssistant() && msg.Sender.Is(s.target.Participant()) {
		s.peerMessages = append(s.peerMessages, msg)
		accepted = true
	}
	state := s.stateLocked()
	s.mu.Unlock()

	if !accepted {
		s.logger.Debug().Str("sender", w.SenderID).Msg("dropping message from inactive conversation")
		return
	}
	if s.onChange != nil {
		s.onChange(state)
	}
}
