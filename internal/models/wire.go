package models

import "time"

// WireMessage is the JSON representation used by the history endpoint, the
// send endpoint and push events.
type WireMessage struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Resolve maps raw ids onto participants from the point of view of selfID.
// Anything that is not the current user is a peer; the assistant never
// travels over the wire.
func (w WireMessage) Resolve(selfID string) Message {
	return Message{
		ID:        w.ID,
		Sender:    resolveParticipant(w.SenderID, selfID),
		Receiver:  resolveParticipant(w.ReceiverID, selfID),
		Text:      w.Text,
		Image:     w.Image,
		CreatedAt: w.CreatedAt,
	}
}

func resolveParticipant(id, selfID string) Participant {
	if id == selfID {
		return Self(id)
	}
	return Peer(id)
}
