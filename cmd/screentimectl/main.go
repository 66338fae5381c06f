/**
 * CONTEXT:   screentimectl admin CLI entrypoint
 * INPUT:     Command line arguments routed to the admin HTTP API
 * OUTPUT:    Rendered tables/JSON and an exit code per spec section 6
 * BUSINESS:  Operators need a stable local surface to inspect and steer the daemon
 * RISK:      Low - thin client, no direct store or enforcement access
 */
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aaronsb/screentimed/internal/config"
)

// Exit codes per spec section 6.
const (
	exitOK        = 0
	exitUsage     = 1
	exitNotFound  = 2
	exitForbidden = 3
	exitInternal  = 4
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgMagenta, color.Bold)
)

var (
	adminHost    string
	adminPort    string
	outputFormat string
	noColor      bool

	client *apiClient
)

var rootCmd = &cobra.Command{
	Use:   "screentimectl",
	Short: "Control and inspect the screentimed enforcement daemon",
	Long: `screentimectl talks to screentimed's loopback admin API to inspect
and steer schedules, patterns, limits, the discovery queue, message
templates, and audit history.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || os.Getenv("NO_COLOR") != "" {
			color.NoColor = true
		}
		client = newAPIClient(config.AdminURL(adminHost, adminPort))
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&adminHost, "host", "", "admin API host (default 127.0.0.1)")
	rootCmd.PersistentFlags().StringVar(&adminPort, "port", "", "admin API port (default 9193)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(messageCmd)
	rootCmd.AddCommand(maintenanceCmd)

	if err := rootCmd.Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an API or usage error to one of the exit codes spec
// section 6 names.
func exitCodeFor(err error) int {
	if _, ok := err.(*usageError); ok {
		return exitUsage
	}
	if apiErr, ok := err.(*apiError); ok {
		switch apiErr.status {
		case 400:
			return exitUsage
		case 404:
			return exitNotFound
		case 403:
			return exitForbidden
		default:
			return exitInternal
		}
	}
	return exitInternal
}

// usageError is an invocation rejected locally, before any request is
// sent to the admin API.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func fail(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
