package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/esguard/internal/core/domain"
)

var errNoDeadLetters = errors.New("dead lettering is disabled, set dead_letter.backend")

var (
	dlqListLimit   int
	dlqReplayLimit int
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay dead-lettered bulk documents",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending dead letters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		repo := app.DeadLetters()
		if repo == nil {
			return errNoDeadLetters
		}
		docs, err := repo.GetPending(cmd.Context(), dlqListLimit)
		if err != nil {
			return err
		}
		return writeDeadLetters(cmd.OutOrStdout(), docs)
	},
}

var dlqReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Resubmit pending dead letters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, cfg, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		repo := app.DeadLetters()
		if repo == nil {
			return errNoDeadLetters
		}

		limit := dlqReplayLimit
		if limit == 0 {
			limit = cfg.DeadLetter.ReplayLimit
		}
		report, err := app.Client().ReplayDeadLetters(cmd.Context(), repo, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

var dlqDiscardCmd = &cobra.Command{
	Use:   "discard [id...]",
	Short: "Drop dead letters without replaying them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		repo := app.DeadLetters()
		if repo == nil {
			return errNoDeadLetters
		}
		n, err := repo.Discard(cmd.Context(), args...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "discarded %d of %d\n", n, len(args))
		return nil
	},
}

func init() {
	dlqListCmd.Flags().IntVar(&dlqListLimit, "limit", 50, "maximum number of documents to list, 0 for all")
	dlqReplayCmd.Flags().IntVar(&dlqReplayLimit, "limit", 0, "maximum number of documents to replay (default dead_letter.replay_limit)")

	dlqCmd.AddCommand(dlqListCmd, dlqReplayCmd, dlqDiscardCmd)
	rootCmd.AddCommand(dlqCmd)
}

func writeDeadLetters(out io.Writer, docs []*domain.FailedDocument) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBATCH\tRETRIES\tCREATED\tERROR\tACTION")
	for _, d := range docs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			d.ID,
			d.BatchID,
			d.RetryCount,
			time.Unix(d.CreatedAt, 0).UTC().Format(time.RFC3339),
			d.Error,
			d.Action,
		)
	}
	return w.Flush()
}
