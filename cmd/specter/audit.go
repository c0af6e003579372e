package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spectersec/specter/internal/audit"
	"github.com/spectersec/specter/internal/config"
	"github.com/spectersec/specter/pkg/models"
)

var (
	auditJSON  bool
	auditRole  string
	auditRun   string
	auditLimit int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the tool-invocation audit log",
	Long: `Show tool calls and results recorded by worker agents.

By default prints the most recent events. Filter by role or run ID to
reconstruct what a specific agent or analysis turn actually did.

Examples:
  specter audit                     # Recent events
  specter audit --role static       # Everything the static worker invoked
  specter audit --run 3f9a2c1d      # One turn's invocations
  specter audit --json | jq .`,
	RunE: runAuditLog,
}

func init() {
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Output in JSON format")
	auditCmd.Flags().StringVar(&auditRole, "role", "", "Filter by worker role (static, dynamic)")
	auditCmd.Flags().StringVar(&auditRun, "run", "", "Filter by run ID")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum events to show (recent view only)")
}

func runAuditLog(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	path := cfg.Audit.Path
	if path == "" {
		path = audit.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no audit log at %s", path)
	}

	store, err := audit.Open(path)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer store.Close()

	var records []audit.Record
	switch {
	case auditRole != "":
		records, err = store.ByRole(models.Role(auditRole))
	case auditRun != "":
		records, err = store.ByRun(auditRun)
	default:
		records, err = store.Recent(auditLimit)
	}
	if err != nil {
		return fmt.Errorf("query audit log: %w", err)
	}

	if auditJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No audit events found.")
		return nil
	}

	for _, r := range records {
		marker := " "
		if r.IsError {
			marker = "!"
		}
		fmt.Printf("%s %s  run=%s  %-7s  %-12s %s\n", marker,
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.RunID, r.Role, r.Kind, r.ToolName)
		if r.Payload != "" {
			fmt.Printf("    %s\n", truncatePayload(r.Payload, 160))
		}
	}
	return nil
}

// truncatePayload shortens a payload to maxLen characters, collapsing
// newlines for single-line display.
func truncatePayload(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
