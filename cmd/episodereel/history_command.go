package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"episodereel/internal/journal"
)

var runColumns = []column{
	leftColumn("Run"),
	leftColumn("Started"),
	leftColumn("Status"),
	leftColumn("Range"),
	rightColumn("Frames"),
	rightColumn("Episodes"),
	rightColumn("Duration"),
	leftColumn("Output"),
}

var episodeColumns = []column{
	rightColumn("Episode"),
	rightColumn("First frame"),
	rightColumn("Frames"),
	leftColumn("File"),
	leftColumn("Text"),
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conversion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.Journal.Path); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(out, "No conversion runs recorded")
				return nil
			}

			runJournal, err := journal.Open(cmd.Context(), cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer runJournal.Close()

			if runID != "" {
				return printRunEpisodes(cmd, runJournal, runID)
			}

			runs, err := runJournal.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No conversion runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format(time.DateTime),
					string(run.Status),
					fmt.Sprintf("[%d, %d)", run.RangeStart, run.RangeEnd),
					strconv.Itoa(run.FramesRead),
					strconv.Itoa(run.Episodes),
					formatRunDuration(run),
					run.OutDir,
				})
			}
			fmt.Fprintln(out, renderTable(runColumns, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show the episodes written by one run")
	return cmd
}

func printRunEpisodes(cmd *cobra.Command, runJournal *journal.Store, runID string) error {
	run, err := runJournal.GetRun(cmd.Context(), runID)
	if err != nil {
		return err
	}
	episodes, err := runJournal.Episodes(cmd.Context(), runID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s) from %s\n", run.ID, run.Status, run.Source)
	if run.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", run.Error)
	}
	rows := make([][]string, 0, len(episodes))
	for _, ep := range episodes {
		rows = append(rows, []string{
			strconv.Itoa(ep.EpisodeID),
			strconv.Itoa(ep.FirstFrame),
			strconv.Itoa(ep.FrameCount),
			ep.FilePath,
			ep.Text,
		})
	}
	fmt.Fprintln(out, renderTable(episodeColumns, rows))
	return nil
}

func formatRunDuration(run journal.Run) string {
	if run.FinishedAt.IsZero() {
		return "-"
	}
	return run.Duration().Round(time.Second).String()
}
