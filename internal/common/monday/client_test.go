package monday

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "bi-agent/internal/common/errors"
)

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func newTestClient(t *testing.T, handler func(t *testing.T, req graphQLRequest) string) (*Client, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(t, req)))
	}))
	t.Cleanup(server.Close)

	return NewClient(Config{
		APIURL:   server.URL,
		APIToken: "test-token",
		PageSize: 2,
		Timeout:  5 * time.Second,
	}), &calls
}

func TestFetchBoardItems_FollowsCursor(t *testing.T) {
	client, calls := newTestClient(t, func(t *testing.T, req graphQLRequest) string {
		assert.Equal(t, float64(2), req.Variables["limit"])
		if strings.Contains(req.Query, "next_items_page") {
			assert.Equal(t, "c1", req.Variables["cursor"])
			return `{"data":{"next_items_page":{"cursor":null,"items":[
				{"id":"3","name":"Gamma","column_values":[{"id":"color_mm0zcw27","text":null}]}
			]}}}`
		}
		assert.Equal(t, "42", req.Variables["board_id"])
		return `{"data":{"boards":[{"items_page":{"cursor":"c1","items":[
			{"id":"1","name":"Alpha","column_values":[{"id":"color_mm0zcw27","text":"Won"}]},
			{"id":"2","name":"Beta","column_values":[]}
		]}}]}}`
	})

	items, err := client.FetchBoardItems(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 2, *calls)
	assert.Equal(t, "Alpha", items[0].Name)
	assert.Equal(t, "Won", items[0].Cells()["color_mm0zcw27"])
	assert.Equal(t, "", items[2].Cells()["color_mm0zcw27"])
}

func TestFetchBoardItems_UnknownBoard(t *testing.T) {
	client, _ := newTestClient(t, func(t *testing.T, req graphQLRequest) string {
		return `{"data":{"boards":[]}}`
	})

	items, err := client.FetchBoardItems(context.Background(), "7")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFetchBoardItems_Errors(t *testing.T) {
	t.Run("missing board id", func(t *testing.T) {
		client, calls := newTestClient(t, func(t *testing.T, req graphQLRequest) string { return `{}` })
		_, err := client.FetchBoardItems(context.Background(), " ")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfiguration))
		assert.Contains(t, err.Error(), "Board ID is not configured")
		assert.Equal(t, 0, *calls)
	})

	t.Run("missing token", func(t *testing.T) {
		client, calls := newTestClient(t, func(t *testing.T, req graphQLRequest) string { return `{}` })
		client.config.APIToken = ""
		_, err := client.FetchBoardItems(context.Background(), "42")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MONDAY_API_TOKEN is not set")
		assert.Equal(t, 0, *calls)
	})

	t.Run("graphql errors", func(t *testing.T) {
		client, _ := newTestClient(t, func(t *testing.T, req graphQLRequest) string {
			return `{"errors":[{"message":"Not Authenticated"}]}`
		})
		_, err := client.FetchBoardItems(context.Background(), "42")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamCallFailed))
		assert.Contains(t, err.Error(), "Not Authenticated")
	})

	t.Run("malformed body", func(t *testing.T) {
		client, _ := newTestClient(t, func(t *testing.T, req graphQLRequest) string { return `<html>` })
		_, err := client.FetchBoardItems(context.Background(), "42")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamFormatInvalid))
	})
}

func TestQuery_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(Config{APIURL: server.URL, APIToken: "t"})
	_, err := client.Query(context.Background(), "query { me { id } }", nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamCallFailed))
	assert.Contains(t, err.Error(), "status 429")
}

func TestProbeBoards(t *testing.T) {
	client, _ := newTestClient(t, func(t *testing.T, req graphQLRequest) string {
		assert.Equal(t, []interface{}{"1", "2"}, req.Variables["board_ids"])
		return `{"data":{"boards":[{"id":"1","name":"Deals","columns":[{"id":"color_mm0zcw27","title":"Deal Status","type":"status"}],
			"items_page":{"items":[{"id":"9","name":"D1","column_values":[{"id":"color_mm0zcw27","text":"Open"}]}]}}]}}`
	})

	boards, err := client.ProbeBoards(context.Background(), "1", "2")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "Deals", boards[0].Name)
	assert.Equal(t, "Deal Status", boards[0].Columns[0].Title)
	require.Len(t, boards[0].ItemsPage.Items, 1)
	assert.Equal(t, "Open", boards[0].ItemsPage.Items[0].ColumnValues[0].Text)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, DefaultAPIURL, c.config.APIURL)
	assert.Equal(t, DefaultPageSize, c.config.PageSize)
}
