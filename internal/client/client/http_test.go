package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gradekeeper/internal/common"
)

func TestNewHTTPClient_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8080", "://x"} {
		_, err := NewHTTPClient(u)
		assert.Error(t, err, u)
	}
}

func TestHTTPClient_Push(t *testing.T) {
	var got common.PushRequest
	var role string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/push", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		role = r.Header.Get(common.RoleHeaderName)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(common.PushResponse{Results: []common.PushResult{{ID: "a", Status: "ok"}}})
	}))
	defer ts.Close()

	c, err := NewHTTPClient(ts.URL+"/", WithRole("lecturer"), WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	res, err := c.Push(context.Background(), []common.Change{{ID: "a", Type: common.ChangeUpsert, Doc: json.RawMessage(`{"x":1}`), Version: 1}})
	require.NoError(t, err)
	assert.Equal(t, []common.PushResult{{ID: "a", Status: "ok"}}, res)
	assert.Equal(t, "lecturer", role)
	require.Len(t, got.Changes, 1)
	assert.JSONEq(t, `{"x":1}`, string(got.Changes[0].Doc))
}

func TestHTTPClient_Pull(t *testing.T) {
	var since, role string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pull", r.URL.Path)
		since = r.URL.Query().Get("since")
		role = r.Header.Get(common.RoleHeaderName)
		_, _ = w.Write([]byte(`{"items":[{"id":"a","updatedAt":17,"version":2,"doc":{"k":"v"}}]}`))
	}))
	defer ts.Close()

	c, err := NewHTTPClient(ts.URL)
	require.NoError(t, err)

	items, err := c.Pull(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "12", since)
	assert.Empty(t, role)
	require.Len(t, items, 1)
	assert.Equal(t, int64(17), items[0].UpdatedAt)
	assert.Equal(t, int64(2), items[0].Version)
}

func TestHTTPClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusBadRequest, ErrRejected},
		{http.StatusServiceUnavailable, ErrUnavailable},
		{http.StatusInternalServerError, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer ts.Close()

			c, err := NewHTTPClient(ts.URL)
			require.NoError(t, err)

			_, err = c.Push(context.Background(), nil)
			assert.ErrorIs(t, err, tt.want)
			_, err = c.Pull(context.Background(), 0)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, c.Ping(context.Background()), tt.want)
		})
	}
}

func TestHTTPClient_TransportErrorIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()

	c, err := NewHTTPClient(url)
	require.NoError(t, err)
	err = c.Ping(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}
