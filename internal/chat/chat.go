package chat

import (
	"context"
	"sync"
	"time"

	"chatty/internal/models"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventNewMessage is the push channel event carrying a peer message.
const EventNewMessage = "newMessage"

// PeerClient talks to the backend holding peer conversations.
type PeerClient interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	History(ctx context.Context, peerID string) ([]models.WireMessage, error)
	Send(ctx context.Context, peerID string, content models.Content) (models.WireMessage, error)
}

// AssistantClient returns a single reply for the given conversation.
type AssistantClient interface {
	Complete(ctx context.Context, turns []models.Turn) (string, error)
}

// PushChannel is an already connected event source. The store only registers
// and removes its handler; connecting and closing belong to the owner.
type PushChannel interface {
	On(event string, handler func(models.WireMessage)) (off func())
}

// UserCache keeps the last known peer directory.
type UserCache interface {
	UpsertUsers(users []models.User) error
	ListUsers() ([]models.User, error)
	GetUser(id string) (models.User, error)
}

// State is a point in time snapshot of the store.
type State struct {
	Target       models.Target
	HasTarget    bool
	Messages     []models.Message
	Loading      bool
	Typing       bool
	UsersLoading bool
	Subscribed   bool
}

type Config struct {
	SelfID    string
	Peers     PeerClient
	Assistant AssistantClient
	Push      PushChannel
	Users     UserCache // optional

	// SystemPrompt is prepended to every completion request when set.
	SystemPrompt string

	Logger   *zerolog.Logger // defaults to a no-op logger
	OnChange func(State)
}

// Store synchronizes the peer conversation, the assistant thread and the live
// push channel into a single visible message list.
type Store struct {
	selfID       string
	peers        PeerClient
	assistant    AssistantClient
	push         PushChannel
	cache        UserCache
	systemPrompt string
	logger       zerolog.Logger
	onChange     func(State)

	newID func() string
	now   func() time.Time

	mu sync.Mutex

	target     models.Target
	hasTarget  bool
	generation uint64

	peerMessages    []models.Message
	assistantThread []models.Message

	loads     int // history fetches in flight
	inflight  int // completions in flight
	usersBusy bool
	users     []models.User
	directory *geche.MapCache[string, models.User]

	subscribed bool

	subMu sync.Mutex // serializes Subscribe/Unsubscribe, guards off
	off   func()
}

func New(config Config) *Store {
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &Store{
		selfID:       config.SelfID,
		peers:        config.Peers,
		assistant:    config.Assistant,
		push:         config.Push,
		cache:        config.Users,
		systemPrompt: config.SystemPrompt,
		logger:       logger,
		onChange:     config.OnChange,
		newID:        uuid.NewString,
		now:          time.Now,
		directory:    geche.NewMapCache[string, models.User](),
	}
}

// SelectTarget makes target the active conversation. It neither loads history
// nor touches the push subscription.
func (s *Store) SelectTarget(target models.Target) {
	s.update(func() {
		s.target = target
		s.hasTarget = true
		s.generation++
	})
}

func (s *Store) Active() (models.Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, s.hasTarget
}

// Visible returns the messages of the active conversation: the peer messages
// when a peer is active, the assistant thread when the assistant is.
func (s *Store) Visible() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleLocked()
}

func (s *Store) AssistantThread() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.assistantThread)
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads > 0
}

// Typing reports whether an assistant completion is outstanding.
func (s *Store) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Load fetches the history of target. For the assistant it is a local switch
// with no network call.
func (s *Store) Load(ctx context.Context, target models.Target) error {
	if target.IsAssistant() {
		s.update(func() {})
		return nil
	}

	var gen uint64
	s.update(func() {
		gen = s.generation
		s.loads++
	})

	raw, err := s.peers.History(ctx, target.ID())

	var stale bool
	s.update(func() {
		s.loads--
		if err != nil {
			return
		}
		if gen != s.generation {
			stale = true
			return
		}
		messages := make([]models.Message, 0, len(raw))
		for _, w := range raw {
			messages = append(messages, w.Resolve(s.selfID))
		}
		s.peerMessages = messages
	})

	switch {
	case err != nil:
		s.logger.Warn().Err(err).Str("peer", target.ID()).Msg("history fetch failed")
		return &FetchError{PeerID: target.ID(), Err: err}
	case stale:
		s.logger.Debug().Str("peer", target.ID()).Msg("discarding history for inactive conversation")
		return ErrStaleTarget
	}
	return nil
}

// Send delivers content to the active conversation.
//
// Peer sends append only the server confirmed message. Assistant sends append
// the user's message right away, then exactly one reply or error placeholder
// once the completion settles; assistant failures are never returned.
func (s *Store) Send(ctx context.Context, content models.Content) error {
	if content.IsEmpty() {
		return ErrEmptyContent
	}

	s.mu.Lock()
	target, ok, gen := s.target, s.hasTarget, s.generation
	s.mu.Unlock()

	if !ok {
		return ErrNoTarget
	}
	if target.IsAssistant() {
		s.ask(ctx, content)
		return nil
	}
	return s.sendToPeer(ctx, target, content, gen)
}

func (s *Store) sendToPeer(ctx context.Context, target models.Target, content models.Content, gen uint64) error {
	raw, err := s.peers.Send(ctx, target.ID(), content)
	if err != nil {
		s.logger.Warn().Err(err).Str("peer", target.ID()).Msg("send failed")
		return &SendError{PeerID: target.ID(), Err: err}
	}

	msg := raw.Resolve(s.selfID)
	s.update(func() {
		// The list now belongs to another conversation; the next load
		// picks the message up from the server.
		if gen != s.generation {
			return
		}
		s.peerMessages = append(s.peerMessages, msg)
	})
	return nil
}

func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	state := s.stateLocked()
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(state)
	}
}

func (s *Store) visibleLocked() []models.Message {
	if !s.hasTarget {
		return []models.Message{}
	}
	if s.target.IsAssistant() {
		return clone(s.assistantThread)
	}
	return clone(s.peerMessages)
}

func (s *Store) stateLocked() State {
	return State{
		Target:       s.target,
		HasTarget:    s.hasTarget,
		Messages:     s.visibleLocked(),
		Loading:      s.loads > 0,
		Typing:       s.inflight > 0,
		UsersLoading: s.usersBusy,
		Subscribed:   s.subscribed,
	}
}

func clone(messages []models.Message) []models.Message {
	out := make([]models.Message, len(messages))
	copy(out, messages)
	return out
}
