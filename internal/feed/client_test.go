package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(server *httptest.Server) *Client {
	return NewClient(Options{
		BaseURL:      server.URL,
		SearchURL:    server.URL + "/search",
		Query:        "sword",
		DepartmentID: 4,
		Timeout:      2 * time.Second,
		RetryWait:    time.Millisecond,
	}, zap.NewNop())
}

func TestSearchIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("hasImages"))
		assert.Equal(t, "4", r.URL.Query().Get("departmentId"))
		assert.Equal(t, "sword", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":     3,
			"objectIDs": []int{11, 22, 33},
		})
	}))
	defer server.Close()

	ids, err := testClient(server).SearchIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{11, 22, 33}, ids)
}

func TestLookup_Hit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/objects/12345", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"objectID":     12345,
			"title":        "Example Sword",
			"primaryImage": "https://img/hero.jpg",
		})
	}))
	defer server.Close()

	rec, err := testClient(server).Lookup(context.Background(), 12345)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 12345, rec.ObjectID)
	assert.Equal(t, "Example Sword", rec.Title)
	assert.Equal(t, "https://img/hero.jpg", rec.PrimaryImage)
}

func TestLookup_MissingEntryIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	rec, err := testClient(server).Lookup(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, rec)
}
