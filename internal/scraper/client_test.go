package scraper

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return New(url, "user@example.com", "hunter2", "1234567890")
}

func TestVerifyCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req loginRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "user@example.com", req.Username)
		assert.Equal(t, "hunter2", req.Password)
		assert.Equal(t, "1234567890", req.CustomerNumber)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ok, err := newTestClient(server.URL).VerifyCredentials(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyCredentialsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	// A rejected login is a clean false, not an error.
	ok, err := newTestClient(server.URL).VerifyCredentials(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyCredentialsTransportErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	ok, err := newTestClient(server.URL).VerifyCredentials(context.Background())
	assert.Error(t, err, "transport failures must be distinguishable from bad credentials")
	assert.False(t, ok)
}

func TestFetchUsageForDate(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/electricity-usages", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "user@example.com", q.Get("username"))
		assert.Equal(t, "hunter2", q.Get("password"))
		assert.Equal(t, "1234567890", q.Get("customerNumber"))
		assert.Equal(t, "2025-03-01", q.Get("date"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"date": "2025-03-01T00:00:00+09:00", "usage": 0.4},
			{"date": "2025-03-01T01:00:00+09:00", "usage": null},
			{"date": "2025-03-01T02:00:00+09:00", "usage": 1.2}
		]`)
	}))
	defer server.Close()

	batch, err := newTestClient(server.URL).FetchUsageForDate(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	jst := time.FixedZone("JST", 9*3600)
	assert.True(t, batch[0].Timestamp.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, jst)))

	require.NotNil(t, batch[0].Usage)
	assert.Equal(t, 0.4, *batch[0].Usage)
	assert.Nil(t, batch[1].Usage, "null readings must stay null, not become zero")
	require.NotNil(t, batch[2].Usage)
	assert.Equal(t, 1.2, *batch[2].Usage)
}

func TestFetchUsageForDateFailures(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "scrape failed", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"oops": "not an array"`)
			},
		},
		{
			name: "empty result",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `[]`)
			},
		},
		{
			name: "unparseable timestamp",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `[{"date": "yesterday-ish", "usage": 1.0}]`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := newTestClient(server.URL).FetchUsageForDate(context.Background(), date)
			assert.ErrorIs(t, err, ErrFetchFailed)
		})
	}
}

func TestFetchUsageForDateTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := newTestClient(server.URL).FetchUsageForDate(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestParseRecordTimeNaiveLocal(t *testing.T) {
	ts, err := parseRecordTime("2025-03-01T13:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 13, 0, 0, 0, time.Local), ts)
}
