package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lessonmate/lessonmate/internal/config"
	"github.com/lessonmate/lessonmate/internal/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lessonmate status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s lessonmate Status\n\n", logo)

	fmt.Printf("Config:    %s %s\n", cfgPath, existsMark(cfgPath))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	ws := cfg.WorkspacePath()
	fmt.Printf("Workspace: %s %s\n", ws, existsMark(ws))
	fmt.Printf("Provider:  %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	if cfg.LLM.APIKey == "" {
		fmt.Println("API key:   (not set)")
	} else {
		fmt.Println("API key:   ✓")
	}
	fmt.Println()

	fmt.Println("Channels:")
	if cfg.Channels.Telegram.Enabled {
		fmt.Printf("  %-10s ✓ (%d allowed senders)\n", "telegram", len(cfg.Channels.Telegram.AllowFrom))
	} else {
		fmt.Printf("  %-10s (disabled)\n", "telegram")
	}
	fmt.Println()

	if led, err := ledger.NewStore(cfg.LedgerPath()); err == nil {
		if unpaid, err := led.Unpaid(); err == nil {
			fmt.Printf("Ledger:    %s (%d unpaid lessons)\n", cfg.LedgerPath(), len(unpaid))
		}
	}
	return nil
}

func existsMark(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "✗"
	}
	return "✓"
}
