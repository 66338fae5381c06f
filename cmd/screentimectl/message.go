package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aaronsb/screentimed/internal/domain"
)

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Manage notification message templates",
}

var (
	messageIntention string
	messageVariant   string
	messageTitle     string
	messageBody      string
	messageIcon      string
	messageUrgency   string
	messageVarsJSON  string
)

// urgencyFromFlag maps the CLI's low|normal|critical spelling onto the
// domain.Urgency int scale templates are stored with.
func urgencyFromFlag(s string) domain.Urgency {
	switch s {
	case "low":
		return domain.UrgencyLow
	case "critical":
		return domain.UrgencyCritical
	default:
		return domain.UrgencyNormal
	}
}

var messageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every message template",
	RunE:  runMessageList,
}

var messageTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Render a template against sample variables without dispatching it",
	RunE:  runMessageTest,
}

var messageAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new message template variant",
	RunE:  runMessageAdd,
}

func init() {
	messageTestCmd.Flags().StringVar(&messageIntention, "intention", "", "intention to render (required)")
	messageTestCmd.Flags().StringVar(&messageVarsJSON, "vars", "{}", "JSON object of template variables")

	messageAddCmd.Flags().StringVar(&messageIntention, "intention", "", "intention this variant belongs to (required)")
	messageAddCmd.Flags().StringVar(&messageVariant, "variant", "default", "variant name")
	messageAddCmd.Flags().StringVar(&messageTitle, "title", "", "title template (required)")
	messageAddCmd.Flags().StringVar(&messageBody, "body", "", "body template (required)")
	messageAddCmd.Flags().StringVar(&messageIcon, "icon", "", "icon name")
	messageAddCmd.Flags().StringVar(&messageUrgency, "urgency", "normal", "low|normal|critical")

	messageCmd.AddCommand(messageListCmd, messageTestCmd, messageAddCmd)
}

func runMessageList(cmd *cobra.Command, args []string) error {
	var templates []domain.MessageTemplate
	if err := client.get("/templates", &templates); err != nil {
		return err
	}

	if outputFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(templates)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Intention", "Variant", "Title", "Enabled"})
	for _, t := range templates {
		enabled := "no"
		if t.Enabled {
			enabled = "yes"
		}
		table.Append([]string{strconv.FormatInt(t.ID, 10), t.Intention, t.Variant, t.Title, enabled})
	}
	table.Render()
	return nil
}

func runMessageTest(cmd *cobra.Command, args []string) error {
	if messageIntention == "" {
		return fail("--intention is required")
	}
	var vars map[string]string
	if err := json.Unmarshal([]byte(messageVarsJSON), &vars); err != nil {
		return fail("--vars must be a JSON object: %v", err)
	}

	var out struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	body := map[string]interface{}{"intention": messageIntention, "vars": vars}
	if err := client.post("/templates/test", body, &out); err != nil {
		return err
	}
	headerColor.Println(out.Title)
	infoColor.Println(out.Body)
	return nil
}

func runMessageAdd(cmd *cobra.Command, args []string) error {
	if messageIntention == "" || messageTitle == "" || messageBody == "" {
		return fail("--intention, --title, and --body are required")
	}
	t := domain.MessageTemplate{
		Intention: messageIntention,
		Variant:   messageVariant,
		Title:     messageTitle,
		Body:      messageBody,
		Icon:      messageIcon,
		Urgency:   urgencyFromFlag(messageUrgency),
		Enabled:   true,
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := client.post("/templates", t, &out); err != nil {
		return err
	}
	successColor.Printf("template %d added\n", out.ID)
	return nil
}
