package chat

import (
	"fmt"

	"chatty/internal/models"

	"github.com/pkg/errors"
)

var (
	ErrNoTarget     = errors.New("no conversation selected")
	ErrEmptyContent = errors.New("message has neither text nor image")
	// ErrStaleTarget is returned by Load when the active conversation changed
	// while the history request was in flight. The result is discarded.
	ErrStaleTarget = errors.New("conversation changed while loading")
	ErrEmptyReply  = models.ErrEmptyReply
)

// FetchError reports a failed history or directory load. Store state is left
// as it was before the call.
type FetchError struct {
	PeerID string
	Err    error
}

func (e *FetchError) Error() string {
	if e.PeerID == "" {
		return fmt.Sprintf("failed to load users: %v", e.Err)
	}
	return fmt.Sprintf("failed to load messages with %s: %v", e.PeerID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SendError reports a rejected peer send. Nothing was appended.
type SendError struct {
	PeerID string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send message to %s: %v", e.PeerID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
