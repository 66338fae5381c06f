package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aaronsb/screentimed/internal/domain"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Inspect and resolve the pattern discovery queue",
}

var (
	discoverOwner       string
	discoverKey         string
	discoverPatternType string
	discoverCategory    string
	discoverDisplayName string
)

var discoverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidates discovery has not yet classified",
	RunE:  runDiscoverList,
}

var discoverPromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Turn a discovery candidate into an active pattern",
	RunE:  runDiscoverPromote,
}

var discoverIgnoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Mark a discovery candidate as ignored, stopping further sampling",
	RunE:  runDiscoverIgnore,
}

func init() {
	for _, c := range []*cobra.Command{discoverPromoteCmd, discoverIgnoreCmd} {
		c.Flags().StringVar(&discoverOwner, "owner", "", "candidate owner (required)")
		c.Flags().StringVar(&discoverKey, "key", "", "candidate key (required)")
		c.Flags().StringVar(&discoverPatternType, "type", string(domain.PatternTypeProcess), "process|browser_domain")
	}
	discoverPromoteCmd.Flags().StringVar(&discoverCategory, "category", string(domain.CategoryGaming), "gaming|educational|social|launcher|ignored")
	discoverPromoteCmd.Flags().StringVar(&discoverDisplayName, "display-name", "", "human-readable name for the new pattern")

	discoverCmd.AddCommand(discoverListCmd, discoverPromoteCmd, discoverIgnoreCmd)
}

func runDiscoverList(cmd *cobra.Command, args []string) error {
	var candidates []domain.DiscoveryCandidate
	if err := client.get("/discovery", &candidates); err != nil {
		return err
	}

	if outputFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(candidates)
	}

	if len(candidates) == 0 {
		warningColor.Println("no pending discovery candidates")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Owner", "Type", "Key", "Samples", "Runtime", "First Seen", "Last Seen"})
	for _, c := range candidates {
		table.Append([]string{
			c.Owner, string(c.PatternType), c.Key, strconv.Itoa(c.Samples),
			formatMinutes(c.AccumulatedRuntimeSec),
			c.FirstSeen.Format("2006-01-02 15:04"), c.LastSeen.Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	return nil
}

func candidateFromFlags() (domain.DiscoveryCandidate, error) {
	if discoverOwner == "" || discoverKey == "" {
		return domain.DiscoveryCandidate{}, fail("--owner and --key are required")
	}
	return domain.DiscoveryCandidate{
		Owner:       discoverOwner,
		PatternType: domain.PatternType(discoverPatternType),
		Key:         discoverKey,
	}, nil
}

func runDiscoverPromote(cmd *cobra.Command, args []string) error {
	cand, err := candidateFromFlags()
	if err != nil {
		return err
	}
	body := map[string]interface{}{
		"candidate":    cand,
		"category":     discoverCategory,
		"display_name": discoverDisplayName,
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := client.post("/discovery/promote", body, &out); err != nil {
		return err
	}
	successColor.Printf("candidate promoted to pattern %d\n", out.ID)
	return nil
}

func runDiscoverIgnore(cmd *cobra.Command, args []string) error {
	cand, err := candidateFromFlags()
	if err != nil {
		return err
	}
	body := map[string]interface{}{"candidate": cand}
	if err := client.post("/discovery/ignore", body, nil); err != nil {
		return err
	}
	successColor.Println("candidate ignored")
	return nil
}
