package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lessonmate/lessonmate/internal/config"
	"github.com/lessonmate/lessonmate/internal/ledger"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and workspace",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	fmt.Printf("✓ Workspace at %s\n", workspace)

	// Seed the ledger so the work tools have a file to read.
	if _, err := ledger.NewStore(cfg.LedgerPath()); err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	fmt.Printf("✓ Ledger at %s\n", cfg.LedgerPath())

	fmt.Printf("\n%s lessonmate is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add your API key to %s (GEMINI_API_KEY also works)\n", cfgPath)
	fmt.Printf("  2. Chat: lessonmate chat -m \"When is my next lesson?\"\n")
	return nil
}
