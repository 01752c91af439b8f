package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRetriesOn5xx(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(2), WithBackoff(time.Millisecond))

	var out struct {
		Data []string `json:"data"`
	}
	err := c.GetJSON(context.Background(), "find_facility", "/mfc/", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestClientExhaustsRetryBudget(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(2), WithBackoff(time.Millisecond))

	var out map[string]any
	err := c.GetJSON(context.Background(), "find_facility", "/mfc/", nil, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvocation)
	assert.Equal(t, 3, calls)
}

func TestClientDoesNotRetry4xx(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(2), WithBackoff(time.Millisecond))

	var out map[string]any
	err := c.GetJSON(context.Background(), "district_info", "/geo/district/", nil, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvocation)
	assert.Equal(t, 1, calls)
}

func TestClientRejectsMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(0))

	var out map[string]any
	err := c.GetJSON(context.Background(), "city_events", "/afisha/all/", nil, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvocation)
}

func TestClientHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(0))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	var out map[string]any
	err := c.GetJSON(ctx, "sport_events", "/sport-events/", nil, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvocation)
}
