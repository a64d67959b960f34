package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/fleet-timesheet/internal/model"
)

var vehiclesFormat string

var vehiclesCmd = &cobra.Command{
	Use:   "vehicles",
	Short: "List fleet vehicles",
	Args:  cobra.NoArgs,
	RunE:  runVehicles,
}

func init() {
	vehiclesCmd.Flags().StringVar(&vehiclesFormat, "format", formatMD, "Output format: md, csv, json")
}

func runVehicles(cmd *cobra.Command, args []string) error {
	if err := checkFormat(vehiclesFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	vehicles, err := mustClient().Vehicles(cmd.Context())
	if err != nil {
		fail(err)
	}
	if len(vehicles) == 0 && vehiclesFormat == formatMD {
		fmt.Println("No vehicles found.")
		return nil
	}
	return render(os.Stdout, vehiclesFormat, vehicleTable(vehicles), vehicles)
}

func vehicleTable(vehicles []model.Vehicle) table {
	t := table{header: []string{"registration", "manufacturer", "model", "year", "color"}}
	for _, v := range vehicles {
		t.add(v.Registration, v.Manufacturer, v.Model, v.ModelYear, v.Color)
	}
	return t
}
