package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"chatty/internal/models"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type wsConnection interface {
	Close() error
	ReadMessage() (messageType int, p []byte, err error)
}

// Frame is a single named event received from the server.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Handler func(models.WireMessage)

// Dial opens the push connection, authenticating with the session cookie.
// The caller owns the returned connection and closes it.
func Dial(ctx context.Context, url, cookieName, token string) (*websocket.Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Cookie", (&http.Cookie{Name: cookieName, Value: token}).String())
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return conn, nil
}

// Channel dispatches events read from a connection to registered handlers.
// Events nobody listens to are dropped.
type Channel struct {
	ws     wsConnection
	logger zerolog.Logger

	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
}

func NewChannel(ws wsConnection, logger zerolog.Logger) *Channel {
	return &Channel{
		ws:       ws,
		logger:   logger,
		handlers: make(map[string]map[int]Handler),
	}
}

// On registers handler for event. The returned func removes exactly this
// registration and is safe to call more than once.
func (c *Channel) On(event string, handler func(models.WireMessage)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]Handler)
	}
	c.handlers[event][id] = handler

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[event], id)
		if len(c.handlers[event]) == 0 {
			delete(c.handlers, event)
		}
	}
}

// Handlers returns the number of handlers registered for event.
func (c *Channel) Handlers(event string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers[event])
}

// Run reads frames until ctx is done or the connection fails. Only transport
// errors end it; a frame that does not decode is skipped. The connection is
// closed on return.
func (c *Channel) Run(ctx context.Context) error {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan []byte)
	errorCh := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Go(func() {
		errorCh <- c.pumpFrames(ctx, frames)
		cancel()
	})

	wg.Go(func() {
		errorCh <- c.mainLoop(ctx, frames)
		cancel()
	})

	<-ctx.Done()
	_ = c.ws.Close()
	wg.Wait()
	close(errorCh)

	if parent.Err() != nil {
		return nil
	}
	for err := range errorCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

func (c *Channel) pumpFrames(ctx context.Context, frames chan<- []byte) error {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read frame")
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Channel) mainLoop(ctx context.Context, frames <-chan []byte) error {
	for {
		select {
		case data := <-frames:
			var f Frame
			if err := json.Unmarshal(data, &f); err != nil {
				c.logger.Warn().Err(err).Msg("malformed frame")
				continue
			}
			c.dispatch(f)
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Channel) dispatch(f Frame) {
	c.mu.RLock()
	ids := make([]int, 0, len(c.handlers[f.Event]))
	for id := range c.handlers[f.Event] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, c.handlers[f.Event][id])
	}
	c.mu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug().Str("event", f.Event).Msg("no handler, dropping event")
		return
	}

	var msg models.WireMessage
	if err := json.Unmarshal(f.Data, &msg); err != nil {
		c.logger.Warn().Err(err).Str("event", f.Event).Msg("malformed event payload")
		return
	}

	for _, h := range handlers {
		h(msg)
	}
}
