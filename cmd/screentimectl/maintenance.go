package main

import (
	"github.com/spf13/cobra"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Trigger retention purges immediately instead of waiting for the daily cron",
	RunE:  runMaintenance,
}

func runMaintenance(cmd *cobra.Command, args []string) error {
	if err := client.post("/maintenance", nil, nil); err != nil {
		return err
	}
	successColor.Println("maintenance complete")
	return nil
}
