package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/zulandar/motorlot/internal/vehicle"
)

func newVehicleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Vehicle lifecycle commands",
	}

	cmd.AddCommand(newVehicleAddCmd())
	cmd.AddCommand(newVehicleListCmd())
	cmd.AddCommand(newVehicleShowCmd())
	cmd.AddCommand(newVehicleMoveCmd())
	cmd.AddCommand(newVehicleReserveCmd())
	cmd.AddCommand(newVehicleReleaseCmd())
	cmd.AddCommand(newVehicleSellCmd())
	cmd.AddCommand(newVehicleReopenCmd())
	cmd.AddCommand(newVehicleArchiveCmd())
	cmd.AddCommand(newVehicleAnnotateCmd())
	return cmd
}

func newVehicleAddCmd() *cobra.Command {
	var (
		configPath string
		model      string
		brand      string
		year       int
		color      string
	)

	cmd := &cobra.Command{
		Use:   "add <vin>",
		Short: "Register a vehicle on arrival",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			v, err := vehicle.Create(gormDB, vehicle.CreateOpts{
				VIN:   args[0],
				Model: model,
				Brand: brand,
				Year:  year,
				Color: color,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added vehicle %s (%s %s, %s)\n", v.VIN, v.Brand, v.Model, vehicle.Label(v.Status))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&model, "model", "", "vehicle model (required)")
	cmd.Flags().StringVar(&brand, "brand", "", "vehicle brand (required)")
	cmd.Flags().IntVar(&year, "year", 0, "model year")
	cmd.Flags().StringVar(&color, "color", "", "exterior color")
	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("brand")
	return cmd
}

func newVehicleListCmd() *cobra.Command {
	var (
		configPath   string
		status       string
		garageStatus string
		brand        string
		archived     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vehicles",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			vehicles, err := vehicle.List(gormDB, vehicle.ListFilters{
				Status:       status,
				GarageStatus: garageStatus,
				Brand:        brand,
				Archived:     archived,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(vehicles) == 0 {
				fmt.Fprintln(out, "No vehicles found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VIN\tBRAND\tMODEL\tYEAR\tSTATUS\tGARAGE\tSTAGE")
			for _, v := range vehicles {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					v.VIN, v.Brand, truncate(v.Model, 24), v.Year,
					vehicle.Label(v.Status), vehicle.Label(v.GarageStatus), vehicle.Label(v.WorkTypeStage))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by commercial status")
	cmd.Flags().StringVar(&garageStatus, "garage", "", "filter by garage status")
	cmd.Flags().StringVar(&brand, "brand", "", "filter by brand")
	cmd.Flags().BoolVar(&archived, "archived", false, "show archived vehicles")
	return cmd
}

func newVehicleShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <vin>",
		Short: "Show vehicle details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			v, err := vehicle.Get(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "VIN:         %s\n", v.VIN)
			fmt.Fprintf(out, "Vehicle:     %s %s (%d, %s)\n", v.Brand, v.Model, v.Year, v.Color)
			fmt.Fprintf(out, "Status:      %s\n", vehicle.Label(v.Status))
			fmt.Fprintf(out, "Garage:      %s\n", vehicle.Label(v.GarageStatus))
			fmt.Fprintf(out, "Stage:       %s\n", vehicle.Label(v.WorkTypeStage))
			if v.ClientName != "" {
				fmt.Fprintf(out, "Client:      %s (%s)\n", v.ClientName, v.ClientPhone)
			}
			if !v.SellingPrice.IsZero() {
				fmt.Fprintf(out, "Price:       %s\n", v.SellingPrice.StringFixed(2))
			}
			if v.ReservationDate != nil {
				fmt.Fprintf(out, "Reserved:    %s\n", v.ReservationDate.Format("2006-01-02"))
			}
			if v.SaleDate != nil {
				fmt.Fprintf(out, "Sold:        %s\n", v.SaleDate.Format("2006-01-02"))
			}
			if v.Archived {
				fmt.Fprintln(out, "Archived:    yes")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	return cmd
}

func newVehicleMoveCmd() *cobra.Command {
	var (
		configPath string
		axis       string
		notes      string
		by         string
	)

	cmd := &cobra.Command{
		Use:   "move <vin> <state>",
		Short: "Move a vehicle to a new state",
		Long: `Moves one axis of a vehicle. The garage axis follows the repair
chain; the work-type axis may jump forward, with skipped stages flagged
in the history entry.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, o, err := orchestratorFromConfig(configPath)
			if err != nil {
				return err
			}
			entry, err := o.TransitionVehicle(cmd.Context(), args[0], axis, args[1], vehicle.Fields{Notes: notes}, currentUser(by))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s: %s %s → %s\n",
				entry.VehicleVIN, entry.Axis, vehicle.Label(entry.FromState), vehicle.Label(entry.ToState))
			if entry.SkippedStages != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped stages: %s\n", entry.SkippedStages)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&axis, "axis", vehicle.AxisGarage, "axis to move (commercial, garage, work_type)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for the history entry")
	cmd.Flags().StringVar(&by, "by", "", "who performed the move (defaults to OS user)")
	return cmd
}

func newVehicleReserveCmd() *cobra.Command {
	var (
		configPath string
		client     string
		phone      string
		email      string
		plate      string
		by         string
	)

	cmd := &cobra.Command{
		Use:   "reserve <vin>",
		Short: "Reserve a vehicle for a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, o, err := orchestratorFromConfig(configPath)
			if err != nil {
				return err
			}
			entry, err := o.ReserveVehicle(cmd.Context(), args[0], vehicle.Fields{
				ClientName:         client,
				ClientPhone:        phone,
				ClientEmail:        email,
				ClientLicensePlate: plate,
			}, currentUser(by))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reserved %s for %s\n", entry.VehicleVIN, client)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&client, "client", "", "client name (required)")
	cmd.Flags().StringVar(&phone, "phone", "", "client phone (required)")
	cmd.Flags().StringVar(&email, "email", "", "client email")
	cmd.Flags().StringVar(&plate, "plate", "", "client license plate")
	cmd.Flags().StringVar(&by, "by", "", "who performed the reservation (defaults to OS user)")
	cmd.MarkFlagRequired("client")
	cmd.MarkFlagRequired("phone")
	return cmd
}

func newVehicleReleaseCmd() *cobra.Command {
	var (
		configPath string
		by         string
	)

	cmd := &cobra.Command{
		Use:   "release <vin>",
		Short: "Cancel a reservation",
		Long:  "Returns a reserved vehicle to stock and clears all client fields.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, o, err := orchestratorFromConfig(configPath)
			if err != nil {
				return err
			}
			entry, err := o.CancelReservation(cmd.Context(), args[0], currentUser(by))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released %s back to stock\n", entry.VehicleVIN)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&by, "by", "", "who released the reservation (defaults to OS user)")
	return cmd
}

func newVehicleSellCmd() *cobra.Command {
	var (
		configPath string
		client     string
		phone      string
		price      string
		saleDate   string
		by         string
	)

	cmd := &cobra.Command{
		Use:   "sell <vin>",
		Short: "Mark a vehicle sold",
		Long: `Marks a vehicle sold. Client details merge over an existing
reservation, so a sale after a reservation does not repeat them. The
sale date defaults to now.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := vehicle.Fields{
				ClientName:  client,
				ClientPhone: phone,
			}
			if price != "" {
				p, err := decimal.NewFromString(price)
				if err != nil {
					return fmt.Errorf("price %q is not a valid decimal", price)
				}
				fields.SellingPrice = p
			}
			if saleDate != "" {
				d, err := time.Parse("2006-01-02", saleDate)
				if err != nil {
					return fmt.Errorf("sale date %q must be YYYY-MM-DD", saleDate)
				}
				fields.SaleDate = &d
			}

			_, _, o, err := orchestratorFromConfig(configPath)
			if err != nil {
				return err
			}
			entry, err := o.SellVehicle(cmd.Context(), args[0], fields, currentUser(by))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sold %s\n", entry.VehicleVIN)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&client, "client", "", "client name (required unless reserved)")
	cmd.Flags().StringVar(&phone, "phone", "", "client phone (required unless reserved)")
	cmd.Flags().StringVar(&price, "price", "", "selling price, e.g. 24000.00")
	cmd.Flags().StringVar(&saleDate, "date", "", "sale date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().StringVar(&by, "by", "", "who performed the sale (defaults to OS user)")
	return cmd
}

func newVehicleReopenCmd() *cobra.Command {
	var (
		configPath string
		reason     string
		by         string
	)

	cmd := &cobra.Command{
		Use:   "reopen <vin>",
		Short: "Reopen a completed vehicle for repair",
		Long:  "Moves a completed vehicle back to in_repair. A reason is required and recorded in history.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, o, err := orchestratorFromConfig(configPath)
			if err != nil {
				return err
			}
			entry, err := o.ReopenVehicle(cmd.Context(), args[0], reason, currentUser(by))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reopened %s for repair\n", entry.VehicleVIN)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&reason, "reason", "", "why the vehicle needs more work (required)")
	cmd.Flags().StringVar(&by, "by", "", "who reopened the vehicle (defaults to OS user)")
	cmd.MarkFlagRequired("reason")
	return cmd
}

func newVehicleArchiveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "archive <vin>",
		Short: "Archive a sold and delivered vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := vehicle.Archive(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	return cmd
}

func newVehicleAnnotateCmd() *cobra.Command {
	var (
		configPath string
		by         string
	)

	cmd := &cobra.Command{
		Use:   "annotate <vin> <note>",
		Short: "Append an audit note to a vehicle's history",
		Long:  "History is never edited; corrections land as new audit entries.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, o, err := orchestratorFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := o.AnnotateVehicle(args[0], args[1], currentUser(by)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Annotated %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().StringVar(&by, "by", "", "who wrote the note (defaults to OS user)")
	return cmd
}
