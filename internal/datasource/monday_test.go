package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bi-agent/internal/common/monday"
	"bi-agent/internal/models"
)

type fakeBoards struct {
	items map[string][]monday.Item
	err   error
}

func (f *fakeBoards) FetchBoardItems(ctx context.Context, boardID string) ([]monday.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items[boardID], nil
}

func cell(id, text string) monday.ColumnValue {
	return monday.ColumnValue{ID: id, Text: text}
}

func TestMondaySource_RenamesColumns(t *testing.T) {
	boards := &fakeBoards{items: map[string][]monday.Item{
		"d": {
			{ID: "1", Name: "Alpha", ColumnValues: []monday.ColumnValue{
				cell("color_mm0zcw27", "Won"),
				cell("color_mm0zaay1", "H. Work Order Received"),
				cell("color_mm0znxwb", "Renewables"),
				cell("numeric_mm0z82j0", "1000"),
				cell("date_mm0zyjxa", "2024-01-02"),
				cell("text_unknown", "x"),
			}},
			{ID: "2", Name: "Beta", ColumnValues: []monday.ColumnValue{
				cell("color_mm0znxwb", "Mining"),
			}},
		},
		"w": {
			{ID: "3", Name: "Alpha", ColumnValues: []monday.ColumnValue{
				cell("color_mm0zms75", "Renewables"),
				cell("numeric_mm0zhacq", "-20"),
				cell("color_mm0zrfab", "Billed"),
			}},
		},
	}}

	src := NewMondaySource(boards, "d", "w")
	assert.Equal(t, "monday", src.Name())

	deals, err := src.FetchDeals(context.Background(), models.SectorNone)
	require.NoError(t, err)
	require.Equal(t, 2, deals.Len())
	assert.Equal(t, "Alpha", deals.Rows[0].Name)
	assert.Equal(t, models.DealStatusWon, deals.Rows[0].Status)
	assert.Equal(t, "H. Work Order Received", deals.Rows[0].Stage)
	assert.Equal(t, "1000", deals.Rows[0].Value)
	require.NotNil(t, deals.Rows[0].CreatedDate)
	assert.Equal(t, models.ColDealName, deals.Columns[0])
	assert.True(t, deals.HasColumn("text_unknown"))
	assert.True(t, deals.HasColumn(models.ColDealStage))

	renewables, err := src.FetchDeals(context.Background(), models.SectorRenewables)
	require.NoError(t, err)
	assert.Equal(t, 1, renewables.Len())

	wos, err := src.FetchWorkOrders(context.Background(), models.SectorNone)
	require.NoError(t, err)
	require.Equal(t, 1, wos.Len())
	assert.Equal(t, "Alpha", wos.Rows[0].DealName)
	assert.Equal(t, "-20", wos.Rows[0].AmountReceivable)
	assert.Equal(t, "Billed", wos.Rows[0].BillingStatus)
}

func TestMondaySource_EmptyBoard(t *testing.T) {
	src := NewMondaySource(&fakeBoards{}, "d", "w")
	deals, err := src.FetchDeals(context.Background(), models.SectorNone)
	require.NoError(t, err)
	assert.Equal(t, 0, deals.Len())
	for _, col := range models.RequiredDealColumns {
		assert.True(t, deals.HasColumn(col))
	}
}

func TestMondaySource_PropagatesErrors(t *testing.T) {
	src := NewMondaySource(&fakeBoards{err: errors.New("boom")}, "d", "w")
	_, err := src.FetchWorkOrders(context.Background(), models.SectorNone)
	assert.EqualError(t, err, "boom")
}

func TestMondaySource_ThroughClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.False(t, strings.Contains(req.Query, "next_items_page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"boards":[{"items_page":{"cursor":"","items":[
			{"id":"1","name":"Alpha","column_values":[{"id":"color_mm0zcw27","text":"Dead"},{"id":"color_mm0znxwb","text":"Railways"}]}
		]}}]}}`))
	}))
	defer server.Close()

	client := monday.NewClient(monday.Config{APIURL: server.URL, APIToken: "tok"})
	deals, err := NewMondaySource(client, "1", "2").FetchDeals(context.Background(), models.SectorRailways)
	require.NoError(t, err)
	require.Equal(t, 1, deals.Len())
	assert.Equal(t, models.DealStatusDead, deals.Rows[0].Status)
}
