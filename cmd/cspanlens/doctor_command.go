package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cspanlens/internal/preflight"
)

var errChecksFailed = errors.New("environment checks failed")

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories and the LLM endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failures := 0

			statuses := preflight.CheckSystemDeps(cfg)
			depRows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "ok"
				switch {
				case !status.Available && status.Optional:
					state = "missing (optional)"
				case !status.Available:
					state = "missing"
					failures++
				}
				detail := status.Path
				if detail == "" {
					detail = status.Detail
				}
				depRows = append(depRows, []string{status.Name, status.Command, state, detail, status.Description})
			}
			fmt.Fprintln(out, renderTable(out, "Dependencies", []string{"Name", "Command", "Status", "Detail", "Purpose"}, depRows, nil))

			results := preflight.RunAll(cmd.Context(), cfg)
			checkRows := make([][]string, 0, len(results))
			for _, result := range results {
				state := "ok"
				if !result.Passed {
					state = "failed"
					failures++
				}
				checkRows = append(checkRows, []string{result.Name, state, result.Detail})
			}
			fmt.Fprintln(out, renderTable(out, "Checks", []string{"Check", "Status", "Detail"}, checkRows, nil))

			if failures > 0 {
				return fmt.Errorf("%w: %d problem(s)", errChecksFailed, failures)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
