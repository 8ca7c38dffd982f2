package roam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillgraph/quill-cli/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL: server.URL,
		Token:   "test-token-1234",
		Graph:   "test-graph",
	})
	require.NoError(t, err)
	// Tests hammer a local server, no need to pace or back off slowly.
	client.limiter.SetLimit(1000)
	client.limiter.SetBurst(1000)
	client.backoff = time.Millisecond
	t.Cleanup(func() { _ = client.Close() })

	return client, server
}

func queryFromRequest(t *testing.T, r *http.Request) string {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)

	var parsed struct {
		Query string `json:"query"`
	}
	require.NoError(t, json.Unmarshal(body, &parsed))
	return parsed.Query
}

func writeResult(w http.ResponseWriter, rows [][]any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"result": rows})
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{Graph: "g"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewClient(Config{Token: "t"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFetchAll(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/graph/test-graph/q", r.URL.Path)
		assert.Equal(t, "Bearer test-token-1234", r.Header.Get("Authorization"))

		query := queryFromRequest(t, r)
		if strings.Contains(query, "?parent-uid") {
			writeResult(w, [][]any{
				{"child-1", "root-1"},
			})
			return
		}
		writeResult(w, [][]any{
			{"root-1", "Project goals", float64(1000), "page-1", "Planning"},
			{"child-1", "Ship the beta", float64(2000), "page-1", "Planning"},
		})
	})

	client, _ := newTestClient(t, handler)

	blocks, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, domain.Block{
		UID:       "root-1",
		Content:   "Project goals",
		EditTime:  1000,
		PageUID:   "page-1",
		PageTitle: "Planning",
	}, blocks[0])
	assert.Equal(t, "root-1", blocks[1].ParentUID)
	assert.Empty(t, blocks[0].ParentUID)
}

func TestFetchModifiedSince_FiltersByTimestamp(t *testing.T) {
	var blockQuery, parentQuery string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := queryFromRequest(t, r)
		if strings.Contains(query, "?parent-uid") {
			parentQuery = query
			writeResult(w, nil)
			return
		}
		blockQuery = query
		writeResult(w, [][]any{
			{"b-2", "Updated", float64(5000), "page-1", "Planning"},
		})
	})

	client, _ := newTestClient(t, handler)

	blocks, err := client.FetchModifiedSince(context.Background(), 4000)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, int64(5000), blocks[0].EditTime)

	assert.Contains(t, blockQuery, "(> ?edit-time 4000)")
	assert.Contains(t, parentQuery, "(> ?edit-time 4000)")
}

func TestFetchModifiedSince_Empty(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeResult(w, nil)
	})

	client, _ := newTestClient(t, handler)

	blocks, err := client.FetchModifiedSince(context.Background(), 4000)
	require.NoError(t, err)
	assert.Empty(t, blocks)
	// No parent lookup when nothing changed.
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchAncestorChain_SortedByOrder(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := queryFromRequest(t, r)
		assert.Contains(t, query, `"deep-block"`)
		writeResult(w, [][]any{
			{"Immediate parent", float64(2)},
			{"Root topic", float64(0)},
			{"Middle section", float64(1)},
		})
	})

	client, _ := newTestClient(t, handler)

	chain, err := client.FetchAncestorChain(context.Background(), "deep-block")
	require.NoError(t, err)
	assert.Equal(t, []string{"Root topic", "Middle section", "Immediate parent"}, chain)
}

func TestFetchAncestorChain_NoParents(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, nil)
	})

	client, _ := newTestClient(t, handler)

	chain, err := client.FetchAncestorChain(context.Background(), "top-level")
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestCall_FollowsRedirectAndCachesPeer(t *testing.T) {
	var peerCalls atomic.Int32
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peerCalls.Add(1)
		writeResult(w, nil)
	}))
	defer peer.Close()

	var entryCalls atomic.Int32
	entry := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entryCalls.Add(1)
		w.Header().Set("Location", peer.URL+r.URL.Path)
		w.WriteHeader(http.StatusTemporaryRedirect)
	})

	client, _ := newTestClient(t, entry)

	_, err := client.FetchModifiedSince(context.Background(), 0)
	require.NoError(t, err)
	_, err = client.FetchModifiedSince(context.Background(), 0)
	require.NoError(t, err)

	// Only the first request hits the entry point.
	assert.Equal(t, int32(1), entryCalls.Load())
	assert.Equal(t, int32(2), peerCalls.Load())
}

func TestCall_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeResult(w, nil)
	})

	client, _ := newTestClient(t, handler)

	_, err := client.FetchModifiedSince(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCall_ExhaustedRetriesWrapSourceUnreachable(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "backend down")
	})

	client, _ := newTestClient(t, handler)

	_, err := client.FetchModifiedSince(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnreachable)
}

func TestCall_AuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	client, _ := newTestClient(t, handler)

	_, err := client.FetchModifiedSince(context.Background(), 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSourceUnreachable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "roam...6789", maskToken("roam-token-123456789"))
	assert.Equal(t, "***", maskToken("short"))
}
