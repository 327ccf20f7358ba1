package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/infra/es/retry"
)

var (
	bulkBatchSize   int
	bulkConcurrency int
)

var bulkCmd = &cobra.Command{
	Use:   "bulk [file]",
	Short: "Load an NDJSON bulk file, '-' reads stdin",
	Long: `Load an NDJSON bulk file (action line, optional source line) in batches.
Batches run concurrently, each with its own retry chain. Documents that fail
for good are dead-lettered when a dead letter backend is configured.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open bulk file: %w", err)
			}
			defer f.Close()
			in = f
		}

		lines, err := readNDJSON(in)
		if err != nil {
			return err
		}

		app, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		report := loadBatches(cmd.Context(), app.Client(), batchDocuments(lines, bulkBatchSize), bulkConcurrency)
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		if report.FailedBatches > 0 {
			return fmt.Errorf("%d of %d batches failed", report.FailedBatches, report.Batches)
		}
		return nil
	},
}

func init() {
	bulkCmd.Flags().IntVar(&bulkBatchSize, "batch-size", 500, "documents per bulk request")
	bulkCmd.Flags().IntVar(&bulkConcurrency, "concurrency", 4, "bulk requests in flight")
	rootCmd.AddCommand(bulkCmd)
}

// readNDJSON returns every non-blank line of r as raw JSON.
func readNDJSON(r io.Reader) ([]any, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var lines []any
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("line %d is not valid JSON", n)
		}
		lines = append(lines, json.RawMessage(bytes.Clone(line)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read bulk input: %w", err)
	}
	return lines, nil
}

// batchDocuments splits bulk lines into bodies of at most size documents,
// never separating an action from its source.
func batchDocuments(lines []any, size int) [][]any {
	if size <= 0 {
		size = 500
	}

	var batches [][]any
	var cur []any
	docs := 0
	for _, doc := range retry.Documents(lines) {
		cur = append(cur, doc...)
		docs++
		if docs == size {
			batches = append(batches, cur)
			cur, docs = nil, 0
		}
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// bulkReport summarizes a bulk load.
type bulkReport struct {
	Batches       int   `json:"batches"`
	FailedBatches int64 `json:"failed_batches"`
	Items         int64 `json:"items"`
}

type bulkSender interface {
	BulkSend(ctx context.Context, body []any) (*domain.BulkResponse, error)
}

func loadBatches(ctx context.Context, client bulkSender, batches [][]any, concurrency int) bulkReport {
	report := bulkReport{Batches: len(batches)}
	var failed, items atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, body := range batches {
		g.Go(func() error {
			resp, err := client.BulkSend(ctx, body)
			if err != nil {
				failed.Add(1)
				slog.Error("Bulk batch failed", "batch", i, "error", err)
				// A failed batch does not cancel the others.
				return nil
			}
			items.Add(int64(len(resp.Items)))
			return nil
		})
	}
	_ = g.Wait()

	report.FailedBatches = failed.Load()
	report.Items = items.Load()
	return report
}
