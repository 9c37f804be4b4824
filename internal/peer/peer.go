package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatty/internal/models"

	"github.com/pkg/errors"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx response from the backend. Message carries the
// backend's human readable explanation when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

type Config struct {
	BaseURL    string
	Token      string
	CookieName string
	Timeout    time.Duration
}

// Client fetches and sends peer messages over the backend's REST API.
type Client struct {
	baseURL    string
	token      string
	cookieName string
	http       *http.Client
}

func New(config Config) *Client {
	cookie := config.CookieName
	if cookie == "" {
		cookie = "jwt"
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		cookieName: cookie,
		http:       &http.Client{Timeout: config.Timeout},
	}
}

// ListUsers returns the peers the current user can talk to.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/messages/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// History returns the conversation with peerID, oldest first.
func (c *Client) History(ctx context.Context, peerID string) ([]models.WireMessage, error) {
	var messages []models.WireMessage
	if err := c.do(ctx, http.MethodGet, "/messages/"+url.PathEscape(peerID), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Send stores a message for peerID and returns the stored record.
func (c *Client) Send(ctx context.Context, peerID string, content models.Content) (models.WireMessage, error) {
	var msg models.WireMessage
	if err := c.do(ctx, http.MethodPost, "/messages/send/"+url.PathEscape(peerID), content, &msg); err != nil {
		return models.WireMessage{}, err
	}
	return msg, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: c.token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var payload struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(data, &payload) == nil {
		apiErr.Message = payload.Message
	}
	return apiErr
}
