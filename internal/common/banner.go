package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective run settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("PSU Scan", GetVersion())

	if logger == nil {
		return
	}
	logger.Info().
		Str("environment", config.Environment).
		Str("tickers_file", config.Batch.TickersFile).
		Int("max_workers", config.Batch.MaxWorkers).
		Int("months_back", config.Batch.MonthsBack).
		Str("min_interval", config.Batch.MinInterval).
		Str("output_dir", config.Output.Dir).
		Msg("Run configuration")
}
