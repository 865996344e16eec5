package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/motorlot/internal/history"
	"github.com/zulandar/motorlot/internal/models"
	"github.com/zulandar/motorlot/internal/vehicle"
)

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		timeline   bool
		axis       string
		recent     int
	)

	cmd := &cobra.Command{
		Use:   "history [vin]",
		Short: "Show transition history",
		Long: `Shows a vehicle's transition history in append order, or the
dealership's most recent transitions when no VIN is given. With
--timeline, ledger operations are merged in for the full service story.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				var entries []models.TransitionHistory
				if axis != "" {
					entries, err = history.QueryByAxis(gormDB, axis)
				} else {
					entries, err = history.QueryRecent(gormDB, recent)
				}
				if err != nil {
					return err
				}
				printTransitions(out, entries, true)
				return nil
			}

			vin := args[0]
			if timeline {
				events, err := history.Timeline(gormDB, vin)
				if err != nil {
					return err
				}
				printTimeline(out, events)
				return nil
			}

			entries, err := history.QueryByVIN(gormDB, vin)
			if err != nil {
				return err
			}
			printTransitions(out, entries, false)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().BoolVar(&timeline, "timeline", false, "merge ledger operations into the history")
	cmd.Flags().StringVar(&axis, "axis", "", "filter dealership-wide history by axis")
	cmd.Flags().IntVar(&recent, "limit", 20, "how many recent entries to show")
	return cmd
}

func printTransitions(out io.Writer, entries []models.TransitionHistory, withVIN bool) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if withVIN {
		fmt.Fprintln(w, "WHEN\tVIN\tAXIS\tFROM\tTO\tBY\tNOTES")
	} else {
		fmt.Fprintln(w, "WHEN\tAXIS\tFROM\tTO\tBY\tNOTES")
	}
	for _, e := range entries {
		notes := e.Notes
		if e.SkippedStages != "" {
			notes = fmt.Sprintf("%s (skipped: %s)", notes, e.SkippedStages)
		}
		if withVIN {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Format("2006-01-02 15:04"), e.VehicleVIN, e.Axis,
				vehicle.Label(e.FromState), vehicle.Label(e.ToState), e.ChangedBy, truncate(notes, 40))
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Format("2006-01-02 15:04"), e.Axis,
				vehicle.Label(e.FromState), vehicle.Label(e.ToState), e.ChangedBy, truncate(notes, 40))
		}
	}
	w.Flush()
}

func printTimeline(out io.Writer, events []history.Event) {
	if len(events) == 0 {
		fmt.Fprintln(out, "No history.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tEVENT\tDETAIL\tBY")
	for _, ev := range events {
		var detail string
		if ev.Kind == "transition" {
			detail = fmt.Sprintf("%s: %s → %s", ev.Axis, vehicle.Label(ev.FromState), vehicle.Label(ev.ToState))
		} else {
			detail = fmt.Sprintf("%+d × %s (%s)", ev.Quantity, ev.PartNumber, ev.Cost.StringFixed(2))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			ev.At.Format("2006-01-02 15:04"), ev.Kind, detail, ev.Actor)
	}
	w.Flush()
}
