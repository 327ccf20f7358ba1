package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/infra/es"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that a cluster node answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Client().Ping(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the cluster version and max_result_window of the reader indices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		info, err := app.Client().Version(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), info)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [index] [id]",
	Short: "Fetch the _source of one document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		doc, err := app.Client().Get(cmd.Context(), domain.Query{Index: args[0], ID: args[1]})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), doc)
	},
}

var templateCmd = &cobra.Command{
	Use:   "template [name] [file]",
	Short: "Install an index template from a JSON file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read template: %w", err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("template %s is not valid JSON", args[1])
		}

		app, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		ack, err := app.Client().PutTemplate(cmd.Context(), json.RawMessage(data), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), ack)
	},
}

// queryFlags select documents for count and search.
type queryFlags struct {
	index string
	query string
	body  string
	start string
	end   string
	key   string
	size  int
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.index, "index", "", "index to query (default reader.index)")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Lucene query string (default reader.query)")
	cmd.Flags().StringVar(&f.body, "body", "", "raw query DSL, overrides the slice flags")
	cmd.Flags().StringVar(&f.start, "start", "", "range start on reader.date_field_name (inclusive)")
	cmd.Flags().StringVar(&f.end, "end", "", "range end on reader.date_field_name (exclusive)")
	cmd.Flags().StringVar(&f.key, "key", "", "wildcard on _uid")
	cmd.Flags().IntVar(&f.size, "size", 0, "maximum number of hits")
}

func (f *queryFlags) build(reader es.ReaderConfig) (domain.Query, error) {
	if f.index != "" {
		reader.Index = f.index
	}
	if f.query != "" {
		reader.Query = f.query
	}

	if f.body != "" {
		if !json.Valid([]byte(f.body)) {
			return domain.Query{}, fmt.Errorf("--body is not valid JSON")
		}
		q := domain.Query{Index: reader.Index, Body: json.RawMessage(f.body), Source: reader.Fields}
		if f.size > 0 {
			q = q.WithSize(f.size)
		}
		return q, nil
	}

	return es.BuildQuery(reader, es.Slice{Start: f.start, End: f.end, Key: f.key, Count: f.size}), nil
}

var countFlags queryFlags

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count documents matching a query",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, cfg, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		q, err := countFlags.build(cfg.Reader)
		if err != nil {
			return err
		}
		n, err := app.Client().Count(cmd.Context(), q)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var searchFlags queryFlags

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search documents and print their _source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, cfg, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		q, err := searchFlags.build(cfg.Reader)
		if err != nil {
			return err
		}

		if cfg.Reader.FullResponse {
			resp, err := app.Client().SearchResponse(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		}

		docs, err := app.Client().Search(cmd.Context(), q)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), docs)
	},
}

func init() {
	countFlags.register(countCmd)
	searchFlags.register(searchCmd)

	rootCmd.AddCommand(pingCmd, versionCmd, getCmd, templateCmd, countCmd, searchCmd)
}
