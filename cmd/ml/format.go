package main

import (
	"fmt"
	"strings"

	"github.com/zulandar/motorlot/internal/dashboard"
)

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatSummary renders the status summary as a text block.
func formatSummary(dealership string, s *dashboard.LotSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", dealership)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", len(dealership)))

	fmt.Fprintf(&b, "Lot:     %d in stock, %d reserved, %d sold (%d total)\n",
		s.Lot.InStock, s.Lot.Reserved, s.Lot.Sold, s.Lot.Total)
	fmt.Fprintf(&b, "Garage:  %d stored, %d in repair, %d awaiting parts, %d ready, %d completed\n",
		s.Garage.Stored, s.Garage.InRepair, s.Garage.AwaitingParts, s.Garage.ReadyForPickup, s.Garage.Completed)
	fmt.Fprintf(&b, "Repairs: %d open\n", s.OpenRepairs)
	fmt.Fprintf(&b, "Parts:   %d in catalog\n", s.PartCount)

	if len(s.LowStock) > 0 {
		fmt.Fprintf(&b, "\nLow stock:\n")
		for _, p := range s.LowStock {
			fmt.Fprintf(&b, "  %s %s (%d on hand)\n", p.PartNumber, p.PartName, p.OnHand)
		}
	}

	return b.String()
}
