package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/phrazzld/shelf/internal/writeq"
)

func newQueueCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the persisted write queue",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Summarize the queue records on disk",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				records, err := writeq.NewRecordStore(afero.NewOsFs(), g.config.Queue.Dir)
				if err != nil {
					return err
				}
				return printRecordSummary(cmd.OutOrStdout(), records)
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every queue record on disk; the recorded writes are lost",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				records, err := writeq.NewRecordStore(afero.NewOsFs(), g.config.Queue.Dir)
				if err != nil {
					return err
				}
				n, err := records.Clear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d records from %s\n", n, records.Dir())
				return nil
			},
		},
		&cobra.Command{
			Use:   "recover",
			Short: "Replay the queue records into the database and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, err := newApplication(cmd.Context(), g.config, g.logger)
				if err != nil {
					return err
				}
				stats, recoverErr := app.queue.Recover(cmd.Context())

				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := app.close(ctx); err != nil {
					return errors.Join(recoverErr, err)
				}
				if recoverErr != nil {
					return recoverErr
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			},
		},
	)
	return cmd
}

type categorySummary struct {
	records int
	tasks   int
	oldest  time.Time
}

// printRecordSummary writes one line per category with the number of
// records and recorded tasks, plus a count of unreadable files.
func printRecordSummary(out io.Writer, records *writeq.RecordStore) error {
	keys, err := records.ListAll()
	if err != nil {
		return err
	}

	summary := make(map[writeq.Category]*categorySummary)
	malformed := 0
	for _, key := range keys {
		rec, err := records.Read(key)
		if err != nil {
			malformed++
			continue
		}
		c, tasks := rec.Category(), 1
		if rec.Batch != nil {
			tasks = len(rec.Batch.Items)
		}
		s, ok := summary[c]
		if !ok {
			s = &categorySummary{}
			summary[c] = s
		}
		s.records++
		s.tasks += tasks
		if ts := rec.Time(); s.oldest.IsZero() || ts.Before(s.oldest) {
			s.oldest = ts
		}
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tRECORDS\tTASKS\tOLDEST")
	for _, c := range writeq.Categories {
		s, ok := summary[c]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", c, s.records, s.tasks, s.oldest.UTC().Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if malformed > 0 {
		fmt.Fprintf(out, "%d malformed records\n", malformed)
	}
	return nil
}
