package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectersec/specter/internal/config"
	"github.com/spectersec/specter/internal/provider"
	"github.com/spectersec/specter/pkg/models"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured tool providers and their capability partitions",
	Long: `List the tool providers defined in the provider inventory, grouped
by the worker role they are bound to.

The inventory location comes from providers.file in the configuration
(default: providers.yaml in the working directory).`,
	RunE: runProviders,
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry, err := provider.LoadFile(cfg.Providers.File)
	if err != nil {
		return fmt.Errorf("load provider inventory: %w", err)
	}

	fmt.Printf("Inventory: %s\n\n", registry.Path())

	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	for _, role := range models.WorkerRoles() {
		providers := registry.ForRole(role)

		bold.Printf("%s (%d provider(s))\n", role, len(providers))
		if len(providers) == 0 {
			faint.Println("  none configured; tasks for this role will be rejected")
			fmt.Println()
			continue
		}

		for _, p := range providers {
			fmt.Printf("  %s\n", p.Name())
			for _, op := range p.Operations() {
				if op.Description != "" {
					faint.Printf("    %s: %s\n", op.Name, op.Description)
				} else {
					faint.Printf("    %s\n", op.Name)
				}
			}
		}
		fmt.Println()
	}

	if len(registry.AvailableWorkerRoles()) == 0 {
		color.New(color.FgRed).Fprintln(os.Stderr, "warning: no worker role has any provider")
	}
	return nil
}
