package chat

import (
	"context"
	"strings"

	"chatty/internal/models"
)

const (
	// PlaceholderText replaces an assistant reply that could not be obtained.
	PlaceholderText = "[AI error: Could not fetch response]"

	imageOnlyTurn = "[image attachment]"
)

// ask runs the two phase assistant send: the echo goes in before the request
// is issued, the reply (or a placeholder) after it settles. The thread outlives
// target switches, so a reply is appended even when the generation moved on;
// the generation is only compared to log that case.
func (s *Store) ask(ctx context.Context, content models.Content) {
	echo := models.Message{
		ID:        s.newID(),
		Sender:    models.Self(s.selfID),
		Receiver:  models.Assistant(),
		Text:      content.Text,
		Image:     content.Image,
		CreatedAt: s.now(),
	}

	var (
		turns []models.Turn
		gen   uint64
	)
	s.update(func() {
		s.assistantThread = append(s.assistantThread, echo)
		s.inflight++
		turns = s.turnsLocked()
		gen = s.generation
	})

	reply, err := s.assistant.Complete(ctx, turns)
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = ErrEmptyReply
	}

	answer := models.Message{
		ID:        s.newID(),
		Sender:    models.Assistant(),
		Receiver:  models.Self(s.selfID),
		Text:      reply,
		CreatedAt: s.now(),
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("assistant completion failed")
		answer.Text = PlaceholderText
		answer.Placeholder = true
	}

	s.update(func() {
		if gen != s.generation {
			s.logger.Debug().Msg("assistant reply settled after conversation switch")
		}
		s.assistantThread = append(s.assistantThread, answer)
		s.inflight--
	})
}

// turnsLocked builds the completion input from the whole thread. Placeholders
// are local artifacts and never sent.
func (s *Store) turnsLocked() []models.Turn {
	turns := make([]models.Turn, 0, len(s.assistantThread)+1)
	if s.systemPrompt != "" {
		turns = append(turns, models.Turn{Role: models.RoleSystem, Content: s.systemPrompt})
	}

	for _, m := range s.assistantThread {
		if m.Placeholder {
			continue
		}
		text := m.Text
		if text == "" {
			if m.Image == "" {
				continue
			}
			text = imageOnlyTurn
		}

		role := models.RoleUser
		if m.Sender.Kind == models.KindAssistant {
			role = models.RoleAssistant
		}
		turns = append(turns, models.Turn{Role: role, Content: text})
	}
	return turns
}
