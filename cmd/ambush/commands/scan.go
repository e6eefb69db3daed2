package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fundambush/internal/analyzer"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [stock_code...]",
	Short: "批量扫描潜伏信号",
	Long: `Scans a list of stocks and prints the ones whose final score
crosses the prediction threshold.

Without arguments the WATCHLIST from the environment is scanned.

Example:
  go run ./cmd/ambush scan
  go run ./cmd/ambush scan 000001 600519 300750`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	codes := args
	if len(codes) == 0 {
		codes = cfg.Watchlist
	}
	if len(codes) == 0 {
		return fmt.Errorf("no stock codes: pass them as arguments or set WATCHLIST")
	}

	svc, _, cleanup, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C aborts the remaining stocks but keeps the hits found so far.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	start := time.Now()
	fmt.Printf("Scanning %d stocks...\n\n", len(codes))

	hits, err := svc.Scan(ctx, codes, func(p analyzer.ScanProgress) {
		switch {
		case p.Error != "":
			fmt.Printf("[%d/%d] %s  失败: %s\n", p.Index, p.Total, p.Code, p.Error)
		case p.Predicted:
			fmt.Printf("[%d/%d] %s  %.1f  ✅ 疑似基金潜伏\n", p.Index, p.Total, p.Code, p.Score)
		default:
			fmt.Printf("[%d/%d] %s  %.1f\n", p.Index, p.Total, p.Code, p.Score)
		}
	})
	if err != nil && len(hits) == 0 {
		return fmt.Errorf("scan: %w", err)
	}

	fmt.Printf("\nDone in %s, %d hit(s)\n", time.Since(start).Round(time.Millisecond), len(hits))
	for _, r := range hits {
		fmt.Printf("  %s %s  %.1f  %s\n", r.Code, r.Name, r.FinalScore, r.VerificationHorizon)
	}
	return nil
}
