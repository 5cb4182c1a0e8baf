// Package monday reads boards from the monday.com GraphQL API.
package monday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "bi-agent/internal/common/errors"
	commonhttp "bi-agent/internal/common/http"
)

const (
	ServiceName     = "monday"
	DefaultAPIURL   = "https://api.monday.com/v2"
	DefaultPageSize = 500
)

const firstPageQuery = `query ($board_id: ID!, $limit: Int!) {
  boards(ids: [$board_id]) {
    items_page(limit: $limit) {
      cursor
      items { id name column_values { id text } }
    }
  }
}`

const nextPageQuery = `query ($cursor: String!, $limit: Int!) {
  next_items_page(cursor: $cursor, limit: $limit) {
    cursor
    items { id name column_values { id text } }
  }
}`

const probeQuery = `query ($board_ids: [ID!]) {
  boards(ids: $board_ids) {
    id
    name
    columns { id title type }
    items_page(limit: 3) {
      items { id name column_values { id text } }
    }
  }
}`

type Config struct {
	APIURL   string
	APIToken string
	PageSize int
	Timeout  time.Duration
}

type Client struct {
	config Config
	http   *commonhttp.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		config: cfg,
		http:   commonhttp.NewClient(cfg.Timeout),
	}
}

// ColumnValue is the display text of one cell; Text is empty for blank cells.
type ColumnValue struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Item struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	ColumnValues []ColumnValue `json:"column_values"`
}

// Cells returns the item's column values keyed by column id.
func (i Item) Cells() map[string]string {
	out := make(map[string]string, len(i.ColumnValues))
	for _, cv := range i.ColumnValues {
		out[cv.ID] = cv.Text
	}
	return out
}

type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Board is a probe result: column metadata plus a few sample items.
type Board struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Columns   []Column `json:"columns"`
	ItemsPage struct {
		Items []Item `json:"items"`
	} `json:"items_page"`
}

type itemsPage struct {
	Cursor string `json:"cursor"`
	Items  []Item `json:"items"`
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// Query posts one GraphQL document and returns the raw data member.
func (c *Client) Query(ctx context.Context, query string, variables map[string]interface{}) (json.RawMessage, error) {
	if c.config.APIToken == "" {
		return nil, apperrors.NewConfigurationError("MONDAY_API_TOKEN is not set")
	}
	if variables == nil {
		variables = map[string]interface{}{}
	}

	payload := map[string]interface{}{"query": query, "variables": variables}
	resp, err := c.http.PostJSON(ctx, c.config.APIURL, map[string]string{"Authorization": c.config.APIToken}, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewUpstreamTimeoutError(ServiceName, err)
		}
		return nil, apperrors.NewUpstreamCallError(ServiceName, err)
	}
	if !resp.IsSuccess() {
		return nil, apperrors.NewUpstreamCallError(ServiceName,
			fmt.Errorf("status %d: %s", resp.StatusCode, resp.Snippet()))
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, apperrors.NewUpstreamFormatError(ServiceName, err.Error())
	}
	if len(env.Errors) > 0 && string(env.Errors) != "null" {
		return nil, apperrors.NewUpstreamCallError(ServiceName,
			fmt.Errorf("monday API errors: %s", strings.TrimSpace(string(env.Errors))))
	}
	return env.Data, nil
}

// FetchBoardItems pages through every item of a board, following the cursor
// until monday returns an empty one.
func (c *Client) FetchBoardItems(ctx context.Context, boardID string) ([]Item, error) {
	if strings.TrimSpace(boardID) == "" {
		return nil, apperrors.NewConfigurationError("Board ID is not configured")
	}

	data, err := c.Query(ctx, firstPageQuery, map[string]interface{}{
		"board_id": boardID,
		"limit":    c.config.PageSize,
	})
	if err != nil {
		return nil, err
	}

	var first struct {
		Boards []struct {
			ItemsPage itemsPage `json:"items_page"`
		} `json:"boards"`
	}
	if err := decodeData(data, &first); err != nil {
		return nil, err
	}
	if len(first.Boards) == 0 {
		return []Item{}, nil
	}

	items := append([]Item{}, first.Boards[0].ItemsPage.Items...)
	cursor := first.Boards[0].ItemsPage.Cursor

	for cursor != "" {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewUpstreamTimeoutError(ServiceName, err)
		}

		data, err := c.Query(ctx, nextPageQuery, map[string]interface{}{
			"cursor": cursor,
			"limit":  c.config.PageSize,
		})
		if err != nil {
			return nil, err
		}

		var next struct {
			NextItemsPage itemsPage `json:"next_items_page"`
		}
		if err := decodeData(data, &next); err != nil {
			return nil, err
		}
		items = append(items, next.NextItemsPage.Items...)
		cursor = next.NextItemsPage.Cursor
	}

	return items, nil
}

// ProbeBoards returns column metadata and three sample items for each board.
func (c *Client) ProbeBoards(ctx context.Context, boardIDs ...string) ([]Board, error) {
	data, err := c.Query(ctx, probeQuery, map[string]interface{}{"board_ids": boardIDs})
	if err != nil {
		return nil, err
	}

	var out struct {
		Boards []Board `json:"boards"`
	}
	if err := decodeData(data, &out); err != nil {
		return nil, err
	}
	return out.Boards, nil
}

func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.NewUpstreamFormatError(ServiceName, err.Error())
	}
	return nil
}
