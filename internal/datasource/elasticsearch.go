package datasource

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bi-agent/internal/common/config"
	"bi-agent/internal/common/database"
	apperrors "bi-agent/internal/common/errors"
	"bi-agent/internal/models"
)

// DefaultSearchSize matches the default index.max_result_window.
const DefaultSearchSize = 10000

// ElasticsearchSource reads one document per row from the deals and work order
// indices. Documents use the same snake_case fields as the postgres tables plus a
// lower-cased sector_normalized keyword used for filtering.
type ElasticsearchSource struct {
	client          *database.ElasticsearchClient
	dealsIndex      string
	workOrdersIndex string
	size            int
}

func NewElasticsearchSource(client *database.ElasticsearchClient, dealsIndex, workOrdersIndex string) *ElasticsearchSource {
	return &ElasticsearchSource{
		client:          client,
		dealsIndex:      dealsIndex,
		workOrdersIndex: workOrdersIndex,
		size:            DefaultSearchSize,
	}
}

func (s *ElasticsearchSource) Name() string {
	return config.BackendElasticsearch
}

func (s *ElasticsearchSource) FetchDeals(ctx context.Context, sector models.Sector) (*models.DealTable, error) {
	records, err := s.search(ctx, s.dealsIndex, dealFields, sector)
	if err != nil {
		return nil, err
	}
	return DealsFromRecords(records, titles(dealFields), sector), nil
}

func (s *ElasticsearchSource) FetchWorkOrders(ctx context.Context, sector models.Sector) (*models.WorkOrderTable, error) {
	records, err := s.search(ctx, s.workOrdersIndex, workOrderFields, sector)
	if err != nil {
		return nil, err
	}
	return WorkOrdersFromRecords(records, titles(workOrderFields), sector), nil
}

// buildSectorQuery returns match_all, or a term filter on sector_normalized.
func buildSectorQuery(sector models.Sector) map[string]interface{} {
	if !sector.IsSet() {
		return map[string]interface{}{
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		}
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"sector_normalized": string(sector)},
					},
				},
			},
		},
	}
}

func (s *ElasticsearchSource) search(ctx context.Context, index string, fields []fieldBinding, sector models.Sector) ([]Record, error) {
	hits, err := s.client.Search(ctx, index, buildSectorQuery(sector), s.size)
	if err != nil {
		var searchErr *database.SearchError
		if errors.As(err, &searchErr) && searchErr.IsIndexMissing() {
			return nil, apperrors.NewIndexNotFoundError(index)
		}
		return nil, apperrors.NewSearchQueryFailedError(index, err)
	}

	records := make([]Record, 0, len(hits))
	for _, hit := range hits {
		rec := make(Record, len(fields))
		for _, f := range fields {
			if v, ok := hit.Source[f.field]; ok {
				if text := stringify(v); text != "" {
					rec[f.title] = text
				}
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// stringify renders a decoded JSON scalar the way it would appear in a CSV cell.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
