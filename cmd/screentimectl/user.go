package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aaronsb/screentimed/internal/domain"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage tracked user accounts",
}

var (
	userSystemUID int
	userEnabled   bool

	userLimitMin       int
	userDailyTotalMin  int
	userGracePeriodSec int
)

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new tracked user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userEditCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Edit a user's gaming limit, daily total, or grace period",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserEdit,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every tracked user",
	RunE:  runUserList,
}

func init() {
	userAddCmd.Flags().IntVar(&userSystemUID, "uid", 0, "OS user id to attribute processes to (required)")
	userAddCmd.Flags().BoolVar(&userEnabled, "enabled", true, "enable enforcement immediately")

	userEditCmd.Flags().IntVar(&userLimitMin, "gaming-limit-min", -1, "daily gaming budget in minutes")
	userEditCmd.Flags().IntVar(&userDailyTotalMin, "daily-total-min", -1, "overall daily tracked-time cap in minutes")
	userEditCmd.Flags().IntVar(&userGracePeriodSec, "grace-period-sec", -1, "grace window before enforcement, in seconds")

	userCmd.AddCommand(userAddCmd, userEditCmd, userListCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	if userSystemUID == 0 {
		return fail("--uid is required")
	}
	u := domain.User{Name: name, SystemUID: userSystemUID, Enabled: userEnabled}
	if err := client.post("/users", u, nil); err != nil {
		return err
	}
	successColor.Printf("user %q added\n", name)
	return nil
}

func runUserEdit(cmd *cobra.Command, args []string) error {
	name := args[0]
	var limits domain.Limits
	if err := client.get("/users/"+name+"/limits", &limits); err != nil {
		return err
	}
	limits.User = name
	if userLimitMin >= 0 {
		limits.GamingLimitMin = userLimitMin
	}
	if userDailyTotalMin >= 0 {
		v := userDailyTotalMin
		limits.DailyTotalMin = &v
	}
	if userGracePeriodSec >= 0 {
		limits.GracePeriodSec = userGracePeriodSec
	}
	if err := client.put("/users/"+name+"/limits", limits, nil); err != nil {
		return err
	}
	successColor.Printf("user %q updated\n", name)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	var users []domain.User
	if err := client.get("/users", &users); err != nil {
		return err
	}

	if outputFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(users)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "System UID", "Enabled"})
	for _, u := range users {
		enabled := "no"
		if u.Enabled {
			enabled = "yes"
		}
		table.Append([]string{u.Name, strconv.Itoa(u.SystemUID), enabled})
	}
	table.Render()
	return nil
}
