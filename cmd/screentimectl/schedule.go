package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "View or modify a user's weekly allowed-hours grid",
}

var (
	scheduleSlot    int
	scheduleAllowed bool
	scheduleFile    string
)

var scheduleViewCmd = &cobra.Command{
	Use:   "view <user>",
	Short: "Print a user's 168-slot weekly schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleView,
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set <user>",
	Short: "Flip a single hour-of-week slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleSet,
}

var scheduleEditCmd = &cobra.Command{
	Use:   "edit <user> <168-char 0/1 grid>",
	Short: "Replace a user's entire 168-character schedule grid inline",
	Args:  cobra.ExactArgs(2),
	RunE:  runScheduleEdit,
}

var scheduleExportCmd = &cobra.Command{
	Use:   "export <user>",
	Short: "Write a user's schedule grid to a file or stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleExport,
}

var scheduleImportCmd = &cobra.Command{
	Use:   "import <user>",
	Short: "Load a user's schedule grid from a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleImport,
}

func init() {
	scheduleSetCmd.Flags().IntVar(&scheduleSlot, "slot", -1, "hour-of-week index, 0-167 (Monday 00:00 = 0)")
	scheduleSetCmd.Flags().BoolVar(&scheduleAllowed, "allowed", true, "whether the slot permits gaming")

	scheduleImportCmd.Flags().StringVar(&scheduleFile, "file", "", "path to a 168-character grid file (required)")
	scheduleExportCmd.Flags().StringVar(&scheduleFile, "file", "", "path to write the grid (default: stdout)")

	scheduleCmd.AddCommand(scheduleViewCmd, scheduleSetCmd, scheduleEditCmd, scheduleExportCmd, scheduleImportCmd)
}

func runScheduleView(cmd *cobra.Command, args []string) error {
	user := args[0]
	var body struct {
		Schedule string `json:"schedule"`
	}
	if err := client.get("/users/"+user+"/schedule", &body); err != nil {
		return err
	}
	printGrid(body.Schedule)
	return nil
}

// printGrid renders the 168-char grid as one row per weekday, 24 chars
// wide, Monday first to match the schedule's own indexing.
func printGrid(grid string) {
	days := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	if len(grid) != 168 {
		warningColor.Printf("schedule grid has unexpected length %d (want 168)\n", len(grid))
	}
	for i, day := range days {
		start := i * 24
		end := start + 24
		if end > len(grid) {
			break
		}
		fmt.Printf("%s %s\n", day, grid[start:end])
	}
}

func runScheduleSet(cmd *cobra.Command, args []string) error {
	user := args[0]
	if scheduleSlot < 0 || scheduleSlot > 167 {
		return fail("--slot must be 0-167")
	}
	body := map[string]bool{"allowed": scheduleAllowed}
	return client.put("/users/"+user+"/schedule/"+strconv.Itoa(scheduleSlot), body, nil)
}

func runScheduleEdit(cmd *cobra.Command, args []string) error {
	user, grid := args[0], args[1]
	if err := client.put("/users/"+user+"/schedule", map[string]string{"schedule": grid}, nil); err != nil {
		return err
	}
	successColor.Println("schedule updated")
	return nil
}

// scheduleExport is one entry of the export document, matching the
// wire shape spec section 6 names: schedule grid plus the limits that
// govern it.
type scheduleExport struct {
	Schedule    string `json:"schedule"`
	GamingLimit int    `json:"gaming_limit"`
	DailyTotal  int    `json:"daily_total"`
}

func runScheduleExport(cmd *cobra.Command, args []string) error {
	user := args[0]
	var scheduleBody struct {
		Schedule string `json:"schedule"`
	}
	if err := client.get("/users/"+user+"/schedule", &scheduleBody); err != nil {
		return err
	}
	var limits struct {
		GamingLimitMin int  `json:"GamingLimitMin"`
		DailyTotalMin  *int `json:"DailyTotalMin"`
	}
	if err := client.get("/users/"+user+"/limits", &limits); err != nil {
		return err
	}
	dailyTotal := 0
	if limits.DailyTotalMin != nil {
		dailyTotal = *limits.DailyTotalMin
	}

	out := map[string]scheduleExport{
		user: {Schedule: scheduleBody.Schedule, GamingLimit: limits.GamingLimitMin, DailyTotal: dailyTotal},
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	if scheduleFile == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(scheduleFile, data, 0644)
}

func runScheduleImport(cmd *cobra.Command, args []string) error {
	user := args[0]
	if scheduleFile == "" {
		return fail("--file is required")
	}
	data, err := os.ReadFile(scheduleFile)
	if err != nil {
		return fmt.Errorf("read schedule file: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	grid := raw
	if strings.HasPrefix(raw, "{") {
		var doc map[string]scheduleExport
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse schedule export: %w", err)
		}
		entry, ok := doc[user]
		if !ok {
			return fail("export file has no entry for user %q", user)
		}
		grid = entry.Schedule
	}

	if err := client.put("/users/"+user+"/schedule", map[string]string{"schedule": grid}, nil); err != nil {
		return err
	}
	successColor.Println("schedule imported")
	return nil
}
