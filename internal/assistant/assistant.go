package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatty/internal/models"

	"github.com/pkg/errors"
)

const DefaultURL = "https://openrouter.ai/api/v1/chat/completions"

// ErrEmptyReply is returned when the response carries no choice or an empty
// one. It is the same sentinel the chat store checks for.
var ErrEmptyReply = models.ErrEmptyReply

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion request failed with %d: %s", e.Status, e.Body)
}

type Config struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client requests single, non-streamed chat completions from an
// OpenAI compatible endpoint.
type Client struct {
	url    string
	apiKey string
	model  string
	http   *http.Client
}

func New(config Config) *Client {
	u := config.URL
	if u == "" {
		u = DefaultURL
	}
	return &Client{
		url:    u,
		apiKey: config.APIKey,
		model:  config.Model,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

type request struct {
	Model    string        `json:"model"`
	Messages []models.Turn `json:"messages"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends turns and returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, turns []models.Turn) (string, error) {
	data, err := json.Marshal(request{Model: c.model, Messages: turns})
	if err != nil {
		return "", errors.Wrap(err, "encode completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "build completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "completion request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode completion response")
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}
