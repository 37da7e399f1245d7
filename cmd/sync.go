package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lessonmate/lessonmate/internal/calendar"
	"github.com/lessonmate/lessonmate/internal/config"
	"github.com/lessonmate/lessonmate/internal/ledger"
	"github.com/lessonmate/lessonmate/internal/tools"
)

var syncLookback int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile finished calendar lessons into the payment ledger",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().IntVar(&syncLookback, "lookback", 0, "Days to scan back (overrides config)")
}

// runSync performs the same reconciliation the nightly job does, without
// needing an LLM provider or API key.
func runSync(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cal, err := calendar.NewStore(cfg.CalendarPath())
	if err != nil {
		return fmt.Errorf("open calendar: %w", err)
	}
	led, err := ledger.NewStore(cfg.LedgerPath())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	lookback := cfg.Sync.LookbackDays
	if syncLookback > 0 {
		lookback = syncLookback
	}
	st := tools.NewSyncLedgerTool(cal, led, calendar.DefaultPricing(), lookback)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	added, scanned, err := st.Sync(ctx, lookback)
	if err != nil {
		return err
	}
	fmt.Printf("Scanned %d finished lessons, recorded %d new ledger rows.\n", scanned, added)
	return nil
}
