package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ternarybob/psuscan/internal/common"
	"github.com/ternarybob/psuscan/internal/interfaces"
	"github.com/ternarybob/psuscan/internal/storage"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Query the result archive",
	Long:  `Lists archived successes ranked by furthest target upside, or shows one ticker's latest record.`,
	RunE:  runResults,
}

var (
	resultsTop    int
	resultsTicker string
)

func init() {
	resultsCmd.Flags().IntVar(&resultsTop, "top", 20, "Number of results to list")
	resultsCmd.Flags().StringVar(&resultsTicker, "ticker", "", "Show the archived record for one ticker")
}

func runResults(cmd *cobra.Command, args []string) error {
	if err := loadConfig(common.FlagOverrides{}); err != nil {
		return err
	}

	manager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return err
	}
	if manager == nil {
		return errors.New("result archive is disabled (storage.badger.enabled = false)")
	}
	defer manager.Close()

	ctx := context.Background()
	archive := manager.ResultStorage()

	if resultsTicker != "" {
		ticker, ok := common.NormalizeTicker(resultsTicker)
		if !ok {
			return fmt.Errorf("invalid ticker %q", resultsTicker)
		}
		rec, err := archive.GetResult(ctx, ticker)
		if errors.Is(err, interfaces.ErrResultNotFound) {
			return fmt.Errorf("no archived result for %s", ticker)
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	total, err := archive.Count(ctx)
	if err != nil {
		return err
	}
	top, err := archive.ListTopUpside(ctx, resultsTop)
	if err != nil {
		return err
	}

	fmt.Printf("%d archived tickers, top %d by furthest upside\n", total, len(top))
	fmt.Println(strings.Repeat("-", 60))
	for i, rec := range top {
		price := 0.0
		if rec.Result != nil && rec.Result.CurrentPrice != nil {
			price = *rec.Result.CurrentPrice
		}
		fmt.Printf("%3d. %-6s $%-9.2f %7.1f%%  run %s\n", i+1, rec.Ticker, price, rec.FurthestUpside, shortID(rec.RunID))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
