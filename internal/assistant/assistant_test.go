package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatty/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string, seen *request) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL, APIKey: "key", Model: "test-model"})
}

func TestComplete(t *testing.T) {
	var seen request
	c := serve(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"4"}},{"message":{"content":"four"}}]}`, &seen)

	reply, err := c.Complete(context.Background(), []models.Turn{{Role: models.RoleUser, Content: "2+2?"}})
	require.NoError(t, err)
	assert.Equal(t, "4", reply)

	assert.Equal(t, "test-model", seen.Model)
	assert.Equal(t, []models.Turn{{Role: models.RoleUser, Content: "2+2?"}}, seen.Messages)
}

func TestComplete_Failures(t *testing.T) {
	turns := []models.Turn{{Role: models.RoleUser, Content: "hi"}}

	t.Run("NoChoices", func(t *testing.T) {
		_, err := serve(t, http.StatusOK, `{"choices":[]}`, nil).Complete(context.Background(), turns)
		require.ErrorIs(t, err, ErrEmptyReply)
		require.ErrorIs(t, err, models.ErrEmptyReply)
	})

	t.Run("EmptyContent", func(t *testing.T) {
		_, err := serve(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":""}}]}`, nil).Complete(context.Background(), turns)
		require.ErrorIs(t, err, models.ErrEmptyReply)
	})

	t.Run("MissingChoices", func(t *testing.T) {
		_, err := serve(t, http.StatusOK, `{}`, nil).Complete(context.Background(), turns)
		require.ErrorIs(t, err, ErrEmptyReply)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := serve(t, http.StatusOK, `not json`, nil).Complete(context.Background(), turns)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode completion response")
	})

	t.Run("Status", func(t *testing.T) {
		_, err := serve(t, http.StatusTooManyRequests, `rate limited`, nil).Complete(context.Background(), turns)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
		assert.Equal(t, "rate limited", apiErr.Body)
	})
}
