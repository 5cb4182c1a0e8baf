// cmd/tools/board-probe prints the column layout and sample items of monday boards,
// for filling in the datasource column maps.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bi-agent/internal/common/config"
	"bi-agent/internal/common/monday"
)

const (
	sampleItems  = 3
	sampleValues = 8
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		boardIDs   []string
		timeout    time.Duration
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "board-probe",
		Short: "Print columns and sample items of the configured monday boards",
		Long: `Queries monday.com for each board's columns (id | type | title) and up to
three sample items. Boards default to monday.deals_board_id and
monday.work_orders_board_id from the agent configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ids := boardIDs
			if len(ids) == 0 {
				ids = configuredBoards(cfg.Monday)
			}
			if len(ids) == 0 {
				return fmt.Errorf("no board ids: set MONDAY_DEALS_BOARD_ID / MONDAY_WORK_ORDERS_BOARD_ID or pass --board")
			}

			client := monday.NewClient(monday.Config{
				APIURL:   cfg.Monday.APIURL,
				APIToken: cfg.Monday.APIToken,
				Timeout:  timeout,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			boards, err := client.ProbeBoards(ctx, ids...)
			if err != nil {
				return err
			}
			render(cmd.OutOrStdout(), boards)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&boardIDs, "board", "b", nil, "board id to probe (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "request timeout")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default: configs/config.yaml search path)")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromFile(path)
}

func configuredBoards(m config.MondayConfig) []string {
	var ids []string
	for _, id := range []string{m.DealsBoardID, m.WorkOrdersBoardID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func render(w io.Writer, boards []monday.Board) {
	for _, b := range boards {
		fmt.Fprintf(w, "\n=== BOARD %s | %s ===\n", b.ID, b.Name)
		fmt.Fprintln(w, "Columns:")
		for _, c := range b.Columns {
			fmt.Fprintf(w, "  %s | %s | %s\n", c.ID, c.Type, c.Title)
		}

		items := b.ItemsPage.Items
		if len(items) > sampleItems {
			items = items[:sampleItems]
		}
		fmt.Fprintln(w, "Sample items:")
		for _, it := range items {
			fmt.Fprintf(w, "  - %s (%s)\n", it.Name, it.ID)
			values := it.ColumnValues
			if len(values) > sampleValues {
				values = values[:sampleValues]
			}
			for _, v := range values {
				fmt.Fprintf(w, "      %s: %s\n", v.ID, v.Text)
			}
		}
	}
}
