package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/psuscan/internal/common"
	"github.com/ternarybob/psuscan/internal/services/report"
	"github.com/ternarybob/psuscan/internal/storage/progress"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show progress of the current or last batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(common.FlagOverrides{}); err != nil {
			return err
		}

		state, err := progress.NewFileStore(config.ProgressPath(), logger).Peek()
		if err != nil {
			return err
		}
		lines, err := report.ReadLines(config.LogPath())
		if err != nil {
			logger.Warn().Err(err).Msg("Could not read event log")
		}

		report.Build(state, lines, time.Now()).Render(os.Stdout)
		return nil
	},
}
