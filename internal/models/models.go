package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrEmptyReply means the completion service answered without content.
	ErrEmptyReply = errors.New("assistant returned an empty reply")
)

// Kind discriminates the parties of a conversation.
type Kind uint8

const (
	KindSelf Kind = iota + 1
	KindPeer
	KindAssistant
)

func (k Kind) String() string {
	switch k {
	case KindSelf:
		return "self"
	case KindPeer:
		return "peer"
	case KindAssistant:
		return "assistant"
	}
	return "unknown"
}

// Participant is the author or counterpart of a message.
// ID is empty for the assistant.
type Participant struct {
	Kind Kind
	ID   string
}

func Self(id string) Participant {
	return Participant{Kind: KindSelf, ID: id}
}

func Peer(id string) Participant {
	return Participant{Kind: KindPeer, ID: id}
}

func Assistant() Participant {
	return Participant{Kind: KindAssistant}
}

func (p Participant) Is(other Participant) bool {
	return p.Kind == other.Kind && p.ID == other.ID
}

// User represents a peer as listed by the backend directory.
type User struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// Target is the conversation a view is pointed at: a peer or the assistant.
type Target struct {
	Kind Kind
	User User // set for peers only
}

func PeerTarget(u User) Target {
	return Target{Kind: KindPeer, User: u}
}

func AssistantTarget() Target {
	return Target{Kind: KindAssistant}
}

func (t Target) IsAssistant() bool {
	return t.Kind == KindAssistant
}

// ID returns the peer id, or "" for the assistant.
func (t Target) ID() string {
	if t.IsAssistant() {
		return ""
	}
	return t.User.ID
}

func (t Target) Participant() Participant {
	if t.IsAssistant() {
		return Assistant()
	}
	return Peer(t.User.ID)
}

// Name is a human readable label for the target.
func (t Target) Name() string {
	switch {
	case t.IsAssistant():
		return "AI Assistant"
	case t.User.FullName != "":
		return t.User.FullName
	}
	return t.User.ID
}

// Message represents a chat message. Messages are never mutated once created.
type Message struct {
	ID        string
	Sender    Participant
	Receiver  Participant
	Text      string
	Image     string
	CreatedAt time.Time

	// Placeholder marks a locally synthesized entry standing in for an
	// assistant reply that could not be obtained.
	Placeholder bool
}

// Content is the body of an outgoing message.
type Content struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

func (c Content) IsEmpty() bool {
	return c.Text == "" && c.Image == ""
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation sent to the completion service.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
