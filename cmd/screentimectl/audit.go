package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aaronsb/screentimed/internal/domain"
)

var (
	auditUser  string
	auditLimit int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show kill-protocol audit history",
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditUser, "user", "", "user whose audit history to show (required)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 0, "max rows (default 200, newest first)")
}

func runAudit(cmd *cobra.Command, args []string) error {
	path := "/users/" + auditUser + "/audit"
	if auditUser == "" {
		return fail("--user is required")
	}
	if auditLimit > 0 {
		path += "?limit=" + strconv.Itoa(auditLimit)
	}

	var entries []domain.AuditEntry
	if err := client.get(path, &entries); err != nil {
		return err
	}

	if outputFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}

	if len(entries) == 0 {
		warningColor.Println("no audit entries")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Timestamp", "User", "PID", "Process", "Reason", "Signal", "Exited"})
	for _, e := range entries {
		exited := "no"
		if e.ExitObserved {
			exited = "yes"
		}
		table.Append([]string{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.User,
			strconv.Itoa(e.PID),
			e.ProcessName,
			e.Reason,
			e.SignalName,
			exited,
		})
	}
	table.Render()
	return nil
}
