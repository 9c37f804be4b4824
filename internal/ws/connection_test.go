package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"chatty/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWS struct {
	readCh      chan []byte
	closeCh     chan struct{}
	closeOnce   sync.Once
	errToReturn error
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:  make(chan []byte, 10),
		closeCh: make(chan struct{}),
	}
}

func (m *mockWS) Close() error {
	m.closeOnce.Do(func() { close(m.closeCh) })
	return nil
}

func (m *mockWS) closed() bool {
	select {
	case <-m.closeCh:
		return true
	default:
		return false
	}
}

func (m *mockWS) ReadMessage() (int, []byte, error) {
	if m.errToReturn != nil {
		return 0, nil, m.errToReturn
	}
	select {
	case data, ok := <-m.readCh:
		if !ok {
			return 0, nil, errors.New("closed")
		}
		return websocket.TextMessage, data, nil
	case <-m.closeCh:
		return 0, nil, errors.New("connection closed")
	}
}

func (m *mockWS) push(t *testing.T, f Frame) {
	t.Helper()
	data, err := json.Marshal(f)
	require.NoError(t, err)
	m.readCh <- data
}

func frame(t *testing.T, event string, msg models.WireMessage) Frame {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return Frame{Event: event, Data: data}
}

func TestChannel_Lifecycle(t *testing.T) {
	ws := newMockWS()
	ch := NewChannel(ws, zerolog.Nop())

	got := make(chan models.WireMessage, 10)
	off := ch.On("newMessage", func(m models.WireMessage) { got <- m })
	assert.Equal(t, 1, ch.Handlers("newMessage"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- ch.Run(ctx)
	}()

	// Unknown events and malformed payloads are skipped.
	ws.push(t, Frame{Event: "getOnlineUsers", Data: json.RawMessage(`["u1"]`)})
	ws.push(t, Frame{Event: "newMessage", Data: json.RawMessage(`"nope"`)})
	ws.readCh <- []byte(`{"event": 42}`)
	ws.readCh <- []byte(`not json`)
	ws.push(t, frame(t, "newMessage", models.WireMessage{ID: "m1", SenderID: "u1", Text: "hi"}))

	select {
	case m := <-got:
		assert.Equal(t, "m1", m.ID)
		assert.Equal(t, "hi", m.Text)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	off()
	off()
	assert.Zero(t, ch.Handlers("newMessage"))

	ws.push(t, frame(t, "newMessage", models.WireMessage{ID: "m2", SenderID: "u1"}))

	select {
	case m := <-got:
		t.Errorf("received %s after off", m.ID)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, ws.closed())
}

func TestChannel_OffRemovesOnlyItsHandler(t *testing.T) {
	ch := NewChannel(newMockWS(), zerolog.Nop())

	var calls []string
	offA := ch.On("newMessage", func(models.WireMessage) { calls = append(calls, "a") })
	ch.On("newMessage", func(models.WireMessage) { calls = append(calls, "b") })

	ch.dispatch(frame(t, "newMessage", models.WireMessage{ID: "m1"}))
	offA()
	ch.dispatch(frame(t, "newMessage", models.WireMessage{ID: "m2"}))

	assert.Equal(t, []string{"a", "b", "b"}, calls)
}

func TestChannel_ReadError(t *testing.T) {
	ws := newMockWS()
	ws.errToReturn = errors.New("read error")
	ch := NewChannel(ws, zerolog.Nop())

	done := make(chan error)
	go func() {
		done <- ch.Run(context.Background())
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read error")
	case <-time.After(time.Second):
		t.Fatal("Run did not return on error")
	}
	assert.True(t, ws.closed())
}

func TestDial(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("jwt")
		if err != nil || c.Value != "secret" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		data, _ := json.Marshal(models.WireMessage{ID: "m1", SenderID: "u1", Text: "hello"})
		_ = conn.WriteJSON(Frame{Event: "newMessage", Data: data})

		// Hold the connection until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, err := Dial(context.Background(), url, "jwt", "wrong")
	require.Error(t, err)

	conn, err := Dial(context.Background(), url, "jwt", "secret")
	require.NoError(t, err)

	ch := NewChannel(conn, zerolog.Nop())
	got := make(chan models.WireMessage, 1)
	ch.On("newMessage", func(m models.WireMessage) { got <- m })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- ch.Run(ctx) }()

	select {
	case m := <-got:
		assert.Equal(t, "hello", m.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestChannel_SurvivesMalformedFrame(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event": 42}`))
		data, _ := json.Marshal(models.WireMessage{ID: "m1", SenderID: "u1", Text: "still here"})
		_ = conn.WriteJSON(Frame{Event: "newMessage", Data: data})

		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	conn, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), "jwt", "")
	require.NoError(t, err)

	ch := NewChannel(conn, zerolog.Nop())
	got := make(chan models.WireMessage, 1)
	ch.On("newMessage", func(m models.WireMessage) { got <- m })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	select {
	case m := <-got:
		assert.Equal(t, "still here", m.Text)
	case err := <-done:
		t.Fatalf("Run returned before the valid frame: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	require.NoError(t, <-done)
}
