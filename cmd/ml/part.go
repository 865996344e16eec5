package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/zulandar/motorlot/internal/ledger"
)

func newPartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "part",
		Short: "Parts inventory commands",
	}

	cmd.AddCommand(newPartAddCmd())
	cmd.AddCommand(newPartListCmd())
	cmd.AddCommand(newPartShowCmd())
	cmd.AddCommand(newPartUseCmd())
	cmd.AddCommand(newPartRefundCmd())
	cmd.AddCommand(newPartLocateCmd())
	cmd.AddCommand(newPartRemoveCmd())
	return cmd
}

func newPartLocateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "locate <part-number> <location>",
		Short: "Move a part to a new storage location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := ledger.AdjustLocation(gormDB, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", ledger.NormalizePartNumber(args[0]), args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	return cmd
}

func newPartAddCmd() *cobra.Command {
	var (
		configPath string
		name       string
		stock      int
		price      string
		location   string
		supplier   string
	)

	cmd := &cobra.Command{
		Use:   "add <part-number>",
		Short: "Add a part to the catalog",
		Long:  "Registers a part with its initial stock. The initial count anchors the conservation check: on-hand must always equal it plus the ledger.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unitPrice, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("price %q is not a valid decimal", price)
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			p, err := ledger.CreatePart(gormDB, ledger.CreateOpts{
				PartNumber:   args[0],
				PartName:     name,
				InitialStock: stock,
				UnitPrice:    unitPrice,
				Location:     location,
				Supplier:     supplier,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added part %s (%d on hand)\n", p.PartNumber, p.QuantityOnHand)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&name, "name", "", "part name (required)")
	cmd.Flags().IntVar(&stock, "stock", 0, "initial stock count")
	cmd.Flags().StringVar(&price, "price", "0", "unit price, e.g. 49.95")
	cmd.Flags().StringVar(&location, "location", "", "storage location")
	cmd.Flags().StringVar(&supplier, "supplier", "", "supplier name")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newPartListCmd() *cobra.Command {
	var (
		configPath string
		location   string
		supplier   string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List parts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			parts, err := ledger.ListParts(gormDB, ledger.ListFilters{
				Location:       location,
				Supplier:       supplier,
				IncludeRemoved: all,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(parts) == 0 {
				fmt.Fprintln(out, "No parts found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PART\tNAME\tON HAND\tPRICE\tLOCATION\tSUPPLIER")
			for _, p := range parts {
				loc := p.Location
				if loc == "" {
					loc = "-"
				}
				sup := p.Supplier
				if sup == "" {
					sup = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					p.PartNumber, truncate(p.PartName, 30), p.QuantityOnHand, p.UnitPrice.StringFixed(2), loc, sup)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&location, "location", "", "filter by storage location")
	cmd.Flags().StringVar(&supplier, "supplier", "", "filter by supplier")
	cmd.Flags().BoolVar(&all, "all", false, "include removed parts")
	return cmd
}

func newPartShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <part-number>",
		Short: "Show a part and its ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			p, err := ledger.FindPart(gormDB, args[0])
			if err != nil {
				return err
			}
			entries, err := ledger.EntriesForPart(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Part:        %s\n", p.PartNumber)
			fmt.Fprintf(out, "Name:        %s\n", p.PartName)
			fmt.Fprintf(out, "On hand:     %d\n", p.QuantityOnHand)
			fmt.Fprintf(out, "Initial:     %d\n", p.InitialStock)
			fmt.Fprintf(out, "Unit price:  %s\n", p.UnitPrice.StringFixed(2))
			if p.Location != "" {
				fmt.Fprintf(out, "Location:    %s\n", p.Location)
			}
			if p.Supplier != "" {
				fmt.Fprintf(out, "Supplier:    %s\n", p.Supplier)
			}
			if p.Removed {
				fmt.Fprintln(out, "Removed:     yes")
			}

			if len(entries) > 0 {
				fmt.Fprintln(out, "\nLedger:")
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "  WHEN\tDELTA\tCOST\tVIN\tREPAIR\tBY\tCONTEXT")
				for _, e := range entries {
					vin := e.VehicleVIN
					if vin == "" {
						vin = "-"
					}
					repair := e.RepairID
					if repair == "" {
						repair = "-"
					}
					fmt.Fprintf(w, "  %s\t%+d\t%s\t%s\t%s\t%s\t%s\n",
						e.CreatedAt.Format("2006-01-02 15:04"), e.QuantityDelta, e.Cost.StringFixed(2),
						vin, repair, e.Technician, e.Context)
				}
				w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	return cmd
}

func newPartUseCmd() *cobra.Command {
	var (
		configPath string
		qty        int
		vin        string
		repairID   string
		kind       string
		key        string
		by         string
	)

	cmd := &cobra.Command{
		Use:   "use <part-number>",
		Short: "Consume stock",
		Long:  "Consumes stock and appends a ledger entry. Fails if fewer units are on hand than requested.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, o, err := orchestratorFromConfig(configPath)
			if err != nil {
				return err
			}
			entry, err := o.UsePart(cmd.Context(), args[0], qty, ledger.OpContext{
				Kind:           kind,
				VehicleVIN:     vin,
				RepairID:       repairID,
				IdempotencyKey: key,
			}, currentUser(by))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Used %d × %s (entry %d, cost %s)\n",
				qty, entry.PartNumber, entry.ID, entry.Cost.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().IntVar(&qty, "qty", 1, "quantity to consume")
	cmd.Flags().StringVar(&vin, "vin", "", "vehicle VIN this consumption is for")
	cmd.Flags().StringVar(&repairID, "repair", "", "repair case ID this consumption is for")
	cmd.Flags().StringVar(&kind, "kind", "manual", "operation kind (manual, scan, ai_recommendation, repair)")
	cmd.Flags().StringVar(&key, "key", "", "idempotency key; repeating a key returns the original entry")
	cmd.Flags().StringVar(&by, "by", "", "who performed the operation (defaults to OS user)")
	return cmd
}

func newPartRefundCmd() *cobra.Command {
	var (
		configPath string
		qty        int
		vin        string
		repairID   string
		key        string
		by         string
	)

	cmd := &cobra.Command{
		Use:   "refund <part-number>",
		Short: "Return stock",
		Long:  "Returns units to stock and appends a ledger entry. Refunds always succeed; over-refunds surface in reconciliation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, o, err := orchestratorFromConfig(configPath)
			if err != nil {
				return err
			}
			entry, err := o.RefundPart(cmd.Context(), args[0], qty, ledger.OpContext{
				Kind:           ledger.KindRepairRefund,
				VehicleVIN:     vin,
				RepairID:       repairID,
				IdempotencyKey: key,
			}, currentUser(by))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refunded %d × %s (entry %d)\n", qty, entry.PartNumber, entry.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().IntVar(&qty, "qty", 1, "quantity to return")
	cmd.Flags().StringVar(&vin, "vin", "", "vehicle VIN this refund is for")
	cmd.Flags().StringVar(&repairID, "repair", "", "repair case ID this refund is for")
	cmd.Flags().StringVar(&key, "key", "", "idempotency key")
	cmd.Flags().StringVar(&by, "by", "", "who performed the operation (defaults to OS user)")
	return cmd
}

func newPartRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "remove <part-number>",
		Short: "Remove a part from the catalog",
		Long:  "Soft-removes a part. Its ledger entries are kept for history.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := ledger.RemovePart(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed part %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	return cmd
}
