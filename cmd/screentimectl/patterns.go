package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aaronsb/screentimed/internal/domain"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Manage classification patterns",
}

var (
	patternOwner       string
	patternType        string
	patternRegex       string
	patternCategory    string
	patternDisplayName string
	patternPriority    int

	patternState string
)

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patterns, optionally scoped to one user",
	RunE:  runPatternsList,
}

var patternsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new classification pattern",
	RunE:  runPatternsAdd,
}

var patternsModifyCmd = &cobra.Command{
	Use:   "modify <id>",
	Short: "Change a pattern's category, display name, or monitor state",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsModify,
}

var patternsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one pattern's full detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsShow,
}

func init() {
	patternsListCmd.Flags().StringVar(&patternOwner, "owner", "", "limit to one user's patterns (empty: all)")

	patternsAddCmd.Flags().StringVar(&patternOwner, "owner", "", "user this pattern belongs to (empty: global)")
	patternsAddCmd.Flags().StringVar(&patternType, "type", string(domain.PatternTypeProcess), "process|browser_domain")
	patternsAddCmd.Flags().StringVar(&patternRegex, "regex", "", "matching regex (required)")
	patternsAddCmd.Flags().StringVar(&patternCategory, "category", string(domain.CategoryGaming), "gaming|educational|social|launcher|ignored")
	patternsAddCmd.Flags().StringVar(&patternDisplayName, "display-name", "", "human-readable name")
	patternsAddCmd.Flags().IntVar(&patternPriority, "priority", 0, "match priority, lower value tried first")

	patternsModifyCmd.Flags().StringVar(&patternCategory, "category", "", "gaming|educational|social|launcher|ignored")
	patternsModifyCmd.Flags().StringVar(&patternDisplayName, "display-name", "", "human-readable name")
	patternsModifyCmd.Flags().StringVar(&patternState, "state", "", "active|discovered|ignored")

	patternsCmd.AddCommand(patternsListCmd, patternsAddCmd, patternsModifyCmd, patternsShowCmd)
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	path := "/patterns"
	if patternOwner != "" {
		path += "?owner=" + patternOwner
	}
	var patterns []domain.Pattern
	if err := client.get(path, &patterns); err != nil {
		return err
	}

	if outputFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(patterns)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Owner", "Type", "Regex", "Category", "State", "Priority"})
	for _, p := range patterns {
		owner := p.Owner
		if owner == "" {
			owner = "(global)"
		}
		table.Append([]string{
			strconv.FormatInt(p.ID, 10), owner, string(p.Type), p.Regex,
			string(p.Category), string(p.MonitorState), strconv.Itoa(p.Priority),
		})
	}
	table.Render()
	return nil
}

func runPatternsAdd(cmd *cobra.Command, args []string) error {
	if patternRegex == "" {
		return fail("--regex is required")
	}
	p := domain.Pattern{
		Type:         domain.PatternType(patternType),
		Regex:        patternRegex,
		DisplayName:  patternDisplayName,
		Category:     domain.Category(patternCategory),
		Owner:        patternOwner,
		MonitorState: domain.MonitorStateActive,
		Priority:     patternPriority,
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := client.post("/patterns", p, &out); err != nil {
		return err
	}
	successColor.Printf("pattern %d added\n", out.ID)
	return nil
}

func runPatternsModify(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fail("invalid pattern id %q", args[0])
	}
	if patternState != "" {
		if err := client.put("/patterns/"+args[0]+"/state", map[string]string{"state": patternState}, nil); err != nil {
			return err
		}
	}
	if patternCategory != "" || patternDisplayName != "" {
		body := map[string]string{"category": patternCategory, "display_name": patternDisplayName}
		if err := client.patch("/patterns/"+args[0], body, nil); err != nil {
			return err
		}
	}
	successColor.Printf("pattern %d updated\n", id)
	return nil
}

func runPatternsShow(cmd *cobra.Command, args []string) error {
	id := args[0]
	var patterns []domain.Pattern
	if err := client.get("/patterns", &patterns); err != nil {
		return err
	}
	for _, p := range patterns {
		if strconv.FormatInt(p.ID, 10) == id {
			return json.NewEncoder(os.Stdout).Encode(p)
		}
	}
	return fail("pattern %s not found", id)
}
