package datasource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"bi-agent/internal/common/config"
	"bi-agent/internal/models"
)

// LocalSource reads the cleaned CSV exports from disk on every fetch.
type LocalSource struct {
	dealsPath      string
	workOrdersPath string
}

func NewLocalSource(dealsPath, workOrdersPath string) *LocalSource {
	return &LocalSource{dealsPath: dealsPath, workOrdersPath: workOrdersPath}
}

func (s *LocalSource) Name() string {
	return config.BackendLocal
}

func (s *LocalSource) FetchDeals(ctx context.Context, sector models.Sector) (*models.DealTable, error) {
	records, columns, err := readCSV(ctx, s.dealsPath)
	if err != nil {
		return nil, err
	}
	return DealsFromRecords(records, columns, sector), nil
}

func (s *LocalSource) FetchWorkOrders(ctx context.Context, sector models.Sector) (*models.WorkOrderTable, error) {
	records, columns, err := readCSV(ctx, s.workOrdersPath)
	if err != nil {
		return nil, err
	}
	return WorkOrdersFromRecords(records, columns, sector), nil
}

// readCSV loads a headed CSV file into title-keyed records. A UTF-8 BOM on the
// header is stripped; short rows leave trailing columns missing.
func readCSV(ctx context.Context, path string) ([]Record, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []Record{}, []string{}, nil
		}
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []Record
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s line %d: %w", path, line, err)
		}

		rec := make(Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = strings.TrimSpace(row[i])
			}
		}
		records = append(records, rec)
	}

	return records, header, nil
}
