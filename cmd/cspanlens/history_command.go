package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cspanlens/internal/runstore"
	"cspanlens/internal/services"
)

const historyTimeLayout = "2006-01-02 15:04"

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analysis runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *runstore.Store) error {
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						run.StartedAt.Local().Format(historyTimeLayout),
						run.Status,
						inputLabel(run),
						strconv.Itoa(run.FramesProcessed),
						formatDuration(run.Duration()),
					})
				}
				fmt.Fprintln(out, renderTable(out, "", []string{"ID", "Started", "Status", "Input", "Frames", "Duration"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Display the analytics and topic timeline of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *runstore.Store) error {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if run == nil {
					return services.Wrap(services.ErrNotFound, "show", "lookup", fmt.Sprintf("no run matches %q", args[0]), nil)
				}
				records, err := store.Contexts(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				writeRunDetails(cmd, run)
				if report, ok := run.Report(); ok {
					writeReport(out, report)
				} else {
					fmt.Fprintln(out, "No analytics recorded")
				}
				writeTimeline(out, records)
				return nil
			})
		},
	}
}

func writeRunDetails(cmd *cobra.Command, run *runstore.Run) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"ID", run.ID},
		{"Status", run.Status},
		{"Input", run.InputPath},
	}
	if run.SourceURL != "" {
		rows = append(rows, []string{"Source URL", run.SourceURL})
	}
	rows = append(rows,
		[]string{"Output", run.OutputPath},
		[]string{"Started", run.StartedAt.Local().Format(time.RFC3339)},
		[]string{"Duration", formatDuration(run.Duration())},
		[]string{"Frames read", strconv.Itoa(run.FramesRead)},
		[]string{"Frames processed", strconv.Itoa(run.FramesProcessed)},
		[]string{"Pose frames", strconv.Itoa(run.PoseFrames)},
		[]string{"Transcript degraded", yesNo(run.TranscriptDegraded)},
	)
	if run.ErrorMessage != "" {
		rows = append(rows, []string{"Error", run.ErrorMessage})
	}
	fmt.Fprintln(out, renderTable(out, "Run", []string{"Field", "Value"}, rows, nil))
}

func inputLabel(run *runstore.Run) string {
	if strings.TrimSpace(run.InputPath) != "" {
		return filepath.Base(run.InputPath)
	}
	return run.SourceURL
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
