package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aaronsb/screentimed/internal/domain"
)

// userStatus mirrors admin.UserStatus field-for-field; the CLI decodes
// its own copy rather than importing the admin package, keeping
// screentimectl a pure HTTP client with no internal-package coupling.
type userStatus struct {
	User       domain.User
	Limits     *domain.Limits
	Summary    *domain.DailySummary
	AllowedNow bool
}

var statusUser string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's enforcement snapshot for one or all users",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusUser, "user", "", "limit to a single user")
}

func runStatus(cmd *cobra.Command, args []string) error {
	var statuses []userStatus
	path := "/status"
	if statusUser != "" {
		path += "?user=" + statusUser
	}
	if err := client.get(path, &statuses); err != nil {
		return err
	}

	if outputFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(statuses)
	}

	if len(statuses) == 0 {
		warningColor.Println("no matching users")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"User", "State", "Gaming Today", "Total Today", "Limit", "Allowed Now"})
	for _, st := range statuses {
		state := "available"
		gaming := "0m"
		total := "0m"
		if st.Summary != nil {
			state = string(st.Summary.State)
			gaming = formatMinutes(st.Summary.GamingTimeSec)
			total = formatMinutes(st.Summary.TotalTimeSec)
		}
		limit := "none"
		if st.Limits != nil {
			weekday := (int(time.Now().Weekday()) + 6) % 7
			limit = fmt.Sprintf("%dm", st.Limits.EffectiveGamingLimitMin(weekday))
		}
		allowed := "no"
		if st.AllowedNow {
			allowed = "yes"
		}
		table.Append([]string{st.User.Name, state, gaming, total, limit, allowed})
	}
	table.Render()
	return nil
}

func formatMinutes(sec int64) string {
	return fmt.Sprintf("%dm", sec/60)
}
