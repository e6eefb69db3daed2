package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fundambush/internal/contracts"
	"fundambush/pkg/config"
	"fundambush/pkg/logger"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [stock_code]",
	Short: "分析单只股票",
	Long: `Runs the full detection pipeline for one stock and prints the
result as JSON.

By default the bar history, metadata and market context are loaded from
the database. With --bars and --meta the run is fully offline against
local JSON fixtures, which is how strategy documents are tuned.

Example:
  go run ./cmd/ambush analyze 000001
  go run ./cmd/ambush analyze 000001 --extras extras.json
  go run ./cmd/ambush analyze 000001 --bars bars.json --meta meta.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	barsPath   string
	metaPath   string
	marketPath string
	extrasPath string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&barsPath, "bars", "", "本地日线数据 JSON 文件")
	analyzeCmd.Flags().StringVar(&metaPath, "meta", "", "本地股票元数据 JSON 文件")
	analyzeCmd.Flags().StringVar(&marketPath, "market", "", "本地市场环境 JSON 文件")
	analyzeCmd.Flags().StringVar(&extrasPath, "extras", "", "补充数据 JSON 文件")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	code := args[0]

	cfg, log, err := setup()
	if err != nil {
		return err
	}

	var extras *contracts.Extras
	if extrasPath != "" {
		doc, err := os.ReadFile(extrasPath)
		if err != nil {
			return fmt.Errorf("read extras: %w", err)
		}
		extras = contracts.ParseExtras(doc)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var result *contracts.FinalAnalysisResult
	if barsPath != "" {
		result, err = analyzeOffline(ctx, cfg, log, code, extras)
	} else {
		svc, _, cleanup, berr := buildService(cfg, log)
		if berr != nil {
			return berr
		}
		defer cleanup()
		result, err = svc.AnalyzeStock(ctx, code, extras)
	}
	if err != nil {
		return fmt.Errorf("analyze %s: %w", code, err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// analyzeOffline runs the pipeline entirely from local fixture files,
// without touching the database or cache.
func analyzeOffline(ctx context.Context, cfg *config.Config, log *logger.Logger, code string, extras *contracts.Extras) (*contracts.FinalAnalysisResult, error) {
	if metaPath == "" {
		return nil, fmt.Errorf("--meta is required with --bars")
	}

	var bars contracts.BarSeries
	if err := readJSONFile(barsPath, &bars); err != nil {
		return nil, fmt.Errorf("read bars: %w", err)
	}

	meta := &contracts.StockMeta{}
	if err := readJSONFile(metaPath, meta); err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	if meta.Code == "" {
		meta.Code = code
	}

	var mkt *contracts.MarketContext
	if marketPath != "" {
		mkt = &contracts.MarketContext{}
		if err := readJSONFile(marketPath, mkt); err != nil {
			return nil, fmt.Errorf("read market context: %w", err)
		}
	}

	core := newAnalyzer(cfg, log)
	return core.Analyze(ctx, bars.Sorted(), meta, mkt, extras)
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
