package main

import (
	"bufio"
	"chatty/internal/chat"
	"chatty/internal/content"
	"chatty/internal/models"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const helpText = `commands:
  /users                  list contacts
  /open <id|ai>           open a conversation
  /image <path> [caption] send an image
  /export <file>          save the open conversation as HTML
  /quit                   exit
anything else is sent to the open conversation`

// session is the interactive front end of the store. It owns the
// subscription lifecycle: leaving a conversation unsubscribes, entering one
// selects, loads and subscribes again.
type session struct {
	store *chat.Store

	mu     sync.Mutex
	out    io.Writer
	seen   map[string]bool
	typing bool
	paused bool

	pending sync.WaitGroup
}

func newSession(out io.Writer) *session {
	return &session{
		out:  out,
		seen: make(map[string]bool),
	}
}

func (s *session) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	s.printf("%s\n", helpText)
	defer s.pending.Wait()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := s.handle(ctx, strings.TrimSpace(line))
			if err != nil {
				s.printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *session) handle(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, s.send(ctx, models.Content{Text: line})
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit":
		s.store.Unsubscribe()
		return true, nil
	case "/users":
		return false, s.listUsers(ctx)
	case "/open":
		if arg == "" {
			return false, errors.New("usage: /open <id|ai>")
		}
		return false, s.open(ctx, arg)
	case "/image":
		path, caption, _ := strings.Cut(arg, " ")
		if path == "" {
			return false, errors.New("usage: /image <path> [caption]")
		}
		image, err := content.LoadImage(path)
		if err != nil {
			return false, err
		}
		return false, s.send(ctx, models.Content{Text: strings.TrimSpace(caption), Image: image})
	case "/export":
		if arg == "" {
			return false, errors.New("usage: /export <file>")
		}
		return false, s.export(arg)
	default:
		s.printf("%s\n", helpText)
		return false, nil
	}
}

func (s *session) listUsers(ctx context.Context) error {
	if err := s.store.LoadUsers(ctx); err != nil {
		return err
	}
	s.printf("  %-26s %s\n", "ai", "AI Assistant")
	for _, u := range s.store.Users() {
		s.printf("  %-26s %s\n", u.ID, u.FullName)
	}
	return nil
}

func (s *session) open(ctx context.Context, id string) error {
	target := models.AssistantTarget()
	if id != "ai" {
		u, ok := s.store.User(id)
		if !ok {
			u = models.User{ID: id}
		}
		target = models.PeerTarget(u)
	}

	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()

	s.store.Unsubscribe()
	s.store.SelectTarget(target)
	loadErr := s.store.Load(ctx, target)
	subErr := s.store.Subscribe()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	if subErr != nil {
		return subErr
	}
	s.seen = make(map[string]bool)
	fmt.Fprintf(s.out, "--- %s ---\n", target.Name())
	for _, m := range s.store.Visible() {
		s.printMessageLocked(m)
	}
	return loadErr
}

// send delivers c. Assistant sends settle in the background so the prompt
// stays usable while the reply is pending.
func (s *session) send(ctx context.Context, c models.Content) error {
	target, ok := s.store.Active()
	if ok && target.IsAssistant() && !c.IsEmpty() {
		s.pending.Go(func() {
			_ = s.store.Send(ctx, c)
		})
		return nil
	}
	return s.store.Send(ctx, c)
}

func (s *session) export(path string) error {
	target, ok := s.store.Active()
	if !ok {
		return chat.ErrNoTarget
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := content.ExportHTML(f, "Chat with "+target.Name(), s.store.Visible(), s.name); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.printf("saved %s\n", path)
	return nil
}

// render prints messages that appeared since the last state.
func (s *session) render(st chat.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused || !st.HasTarget || st.Loading {
		return
	}
	if st.Typing && !s.typing && st.Target.IsAssistant() {
		fmt.Fprintln(s.out, "AI Assistant is typing...")
	}
	s.typing = st.Typing

	for _, m := range st.Messages {
		s.printMessageLocked(m)
	}
}

func (s *session) printMessageLocked(m models.Message) {
	if s.seen[m.ID] {
		return
	}
	s.seen[m.ID] = true

	text := m.Text
	if m.Image != "" {
		text = strings.TrimSpace(text + " [image]")
	}
	fmt.Fprintf(s.out, "[%s] %s: %s\n", m.CreatedAt.Format(time.Kitchen), s.name(m.Sender), text)
}

func (s *session) name(p models.Participant) string {
	switch p.Kind {
	case models.KindSelf:
		return "You"
	case models.KindAssistant:
		return "AI Assistant"
	}
	if u, ok := s.store.User(p.ID); ok && u.FullName != "" {
		return u.FullName
	}
	return p.ID
}

func (s *session) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}
