package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/zulandar/motorlot/internal/repaircase"
	"github.com/zulandar/motorlot/internal/workflow"
)

func newRepairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Repair case commands",
	}

	cmd.AddCommand(newRepairOpenCmd())
	cmd.AddCommand(newRepairListCmd())
	cmd.AddCommand(newRepairShowCmd())
	cmd.AddCommand(newRepairStepCmd())
	cmd.AddCommand(newRepairAttachCmd())
	cmd.AddCommand(newRepairCloseCmd())
	cmd.AddCommand(newRepairFollowupCmd())
	cmd.AddCommand(newRepairPickupCmd())
	return cmd
}

func newRepairOpenCmd() *cobra.Command {
	var (
		configPath string
		client     string
		technician string
		issue      string
		difficulty int
		warranty   int
	)

	cmd := &cobra.Command{
		Use:   "open <vin>",
		Short: "Open a repair case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			rc, err := repaircase.Open(gormDB, repaircase.OpenOpts{
				VehicleVIN:       args[0],
				ClientName:       client,
				Technician:       technician,
				IssueDescription: issue,
				DifficultyLevel:  difficulty,
				WarrantyMonths:   warranty,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened repair case %s for %s\n", rc.RepairID, rc.VehicleVIN)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&client, "client", "", "client name")
	cmd.Flags().StringVar(&technician, "tech", "", "assigned technician (required)")
	cmd.Flags().StringVar(&issue, "issue", "", "issue description (required)")
	cmd.Flags().IntVar(&difficulty, "difficulty", 0, "difficulty level (1-5)")
	cmd.Flags().IntVar(&warranty, "warranty", 0, "warranty months")
	cmd.MarkFlagRequired("tech")
	cmd.MarkFlagRequired("issue")
	return cmd
}

func newRepairListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open repair cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			cases, err := repaircase.ListOpen(gormDB)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(cases) == 0 {
				fmt.Fprintln(out, "No open repair cases.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "REPAIR\tVIN\tTECH\tISSUE\tOPENED")
			for _, rc := range cases {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					rc.RepairID, rc.VehicleVIN, rc.Technician,
					truncate(rc.IssueDescription, 40), rc.CreatedAt.Format("2006-01-02"))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	return cmd
}

func newRepairShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <repair-id>",
		Short: "Show a repair case",
		Long:  "Displays a repair case with its steps, attributed ledger entries, and cost breakdown.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			rc, err := repaircase.Get(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Repair:      %s\n", rc.RepairID)
			fmt.Fprintf(out, "Vehicle:     %s\n", rc.VehicleVIN)
			fmt.Fprintf(out, "Technician:  %s\n", rc.Technician)
			if rc.ClientName != "" {
				fmt.Fprintf(out, "Client:      %s\n", rc.ClientName)
			}
			fmt.Fprintf(out, "Issue:       %s\n", rc.IssueDescription)
			if rc.Closed {
				closedAt := "-"
				if rc.ClosedAt != nil {
					closedAt = rc.ClosedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(out, "Status:      closed (%s)\n", closedAt)
				fmt.Fprintf(out, "Solution:    %s\n", rc.SolutionDescription)
				fmt.Fprintf(out, "Labor:       %s h\n", rc.LaborHours)
				fmt.Fprintf(out, "Total:       %s\n", rc.TotalCost.StringFixed(2))
			} else {
				fmt.Fprintln(out, "Status:      open")
			}
			if rc.FollowUpNotes != "" {
				fmt.Fprintf(out, "Follow-ups:  %s\n", rc.FollowUpNotes)
			}

			if len(rc.Steps) > 0 {
				fmt.Fprintln(out, "\nSteps:")
				for _, s := range rc.Steps {
					fmt.Fprintf(out, "  %d. %s\n", s.Seq, s.Description)
				}
			}
			if len(rc.Entries) > 0 {
				fmt.Fprintln(out, "\nParts:")
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "  ENTRY\tPART\tDELTA\tCOST")
				for _, e := range rc.Entries {
					fmt.Fprintf(w, "  %d\t%s\t%+d\t%s\n", e.ID, e.PartNumber, e.QuantityDelta, e.Cost.StringFixed(2))
				}
				w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	return cmd
}

func newRepairStepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "step <repair-id> <description>",
		Short: "Record a repair step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			step, err := repaircase.AddStep(gormDB, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded step %d on %s\n", step.Seq, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	return cmd
}

func newRepairAttachCmd() *cobra.Command {
	var (
		configPath string
		entryID    uint
	)

	cmd := &cobra.Command{
		Use:   "attach <repair-id>",
		Short: "Attribute a ledger entry to a case",
		Long:  "Attaches an unattributed ledger entry to an open repair case. The entry itself is never edited.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := repaircase.Attach(gormDB, args[0], entryID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attached entry %d to %s\n", entryID, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().UintVar(&entryID, "entry", 0, "ledger entry ID (required)")
	cmd.MarkFlagRequired("entry")
	return cmd
}

func newRepairCloseCmd() *cobra.Command {
	var (
		configPath   string
		solution     string
		hours        string
		total        string
		quality      int
		satisfaction int
	)

	cmd := &cobra.Command{
		Use:   "close <repair-id>",
		Short: "Close a repair case",
		Long: `Seals a repair case. The total is recomputed from attributed parts
and labor at the configured rate; a total supplied with --total is
compared against the recomputed figure and discarded if they differ.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			laborHours, err := decimal.NewFromString(hours)
			if err != nil {
				return fmt.Errorf("hours %q is not a valid decimal", hours)
			}
			opts := repaircase.CloseOpts{
				SolutionDescription: solution,
				LaborHours:          laborHours,
				QualityRating:       quality,
				ClientSatisfaction:  satisfaction,
			}
			if total != "" {
				ct, err := decimal.NewFromString(total)
				if err != nil {
					return fmt.Errorf("total %q is not a valid decimal", total)
				}
				opts.CallerTotal = ct
			}

			_, _, o, err := orchestratorFromConfig(configPath)
			if err != nil {
				return err
			}
			rc, err := o.CloseRepair(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Closed %s (total %s)\n", rc.RepairID, rc.TotalCost.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&solution, "solution", "", "solution description (required)")
	cmd.Flags().StringVar(&hours, "hours", "0", "labor hours, e.g. 2.5")
	cmd.Flags().StringVar(&total, "total", "", "claimed total, checked against the recomputed figure")
	cmd.Flags().IntVar(&quality, "quality", 0, "quality rating (1-5)")
	cmd.Flags().IntVar(&satisfaction, "satisfaction", 0, "client satisfaction (1-5)")
	cmd.MarkFlagRequired("solution")
	return cmd
}

func newRepairFollowupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "followup <repair-id> <note>",
		Short: "Add a follow-up note to a closed case",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := repaircase.AddFollowUp(gormDB, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added follow-up to %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	return cmd
}

func newRepairPickupCmd() *cobra.Command {
	var (
		configPath string
		repairID   string
		parts      []string
		by         string
	)

	cmd := &cobra.Command{
		Use:   "pickup <vin>",
		Short: "Mark a vehicle ready for pickup",
		Long: `Consumes any final parts, attributes them to the repair case, and
moves the vehicle to ready_for_pickup in one step. If any part is
short, nothing is consumed and the vehicle does not move.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			finalParts, err := parsePartUses(parts)
			if err != nil {
				return err
			}
			_, _, o, err := orchestratorFromConfig(configPath)
			if err != nil {
				return err
			}
			entry, err := o.MarkReadyForPickup(cmd.Context(), args[0], repairID, finalParts, currentUser(by))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is ready for pickup (parts %s)\n",
				entry.VehicleVIN, entry.PartsCost.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&repairID, "repair", "", "repair case ID (required)")
	cmd.Flags().StringSliceVar(&parts, "part", nil, "final part as NUMBER:QTY, repeatable")
	cmd.Flags().StringVar(&by, "by", "", "who performed the handoff (defaults to OS user)")
	cmd.MarkFlagRequired("repair")
	return cmd
}

// parsePartUses parses NUMBER:QTY flags into part uses.
func parsePartUses(specs []string) ([]workflow.PartUse, error) {
	var uses []workflow.PartUse
	for _, spec := range specs {
		pn, qtyStr, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("part %q must be NUMBER:QTY", spec)
		}
		qty, err := strconv.Atoi(qtyStr)
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("part %q has invalid quantity", spec)
		}
		uses = append(uses, workflow.PartUse{PartNumber: pn, Quantity: qty})
	}
	return uses, nil
}
