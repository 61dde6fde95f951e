package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/psuscan/internal/app"
	"github.com/ternarybob/psuscan/internal/common"
	"github.com/ternarybob/psuscan/internal/services/batch"
	"github.com/ternarybob/psuscan/internal/services/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the PSU target batch over a ticker list",
	Long: `Processes every ticker in the list with a bounded worker pool, saving progress
as it goes. Interrupting the run stops dispatch, lets in-flight tickers finish and
saves progress so the next run resumes where this one stopped.`,
	RunE: runBatch,
}

var runFlags common.FlagOverrides

func init() {
	runCmd.Flags().IntVarP(&runFlags.Workers, "workers", "w", 0, "Number of parallel workers (overrides config)")
	runCmd.Flags().StringVar(&runFlags.ResumeFrom, "resume-from", "", "Start processing from this ticker")
	runCmd.Flags().IntVar(&runFlags.MaxTickers, "max-tickers", 0, "Process at most this many tickers")
	runCmd.Flags().IntVar(&runFlags.MonthsBack, "months", 0, "Months of Form 4 filings to search")
	runCmd.Flags().StringVar(&runFlags.TickersFile, "tickers", "", "Ticker list file (.txt or .yaml)")
	runCmd.Flags().BoolVar(&runFlags.Fresh, "fresh", false, "Ignore saved progress and start over")
	runCmd.Flags().StringVar(&runFlags.Schedule, "schedule", "", "Cron expression (with seconds) for recurring runs")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := loadConfig(runFlags); err != nil {
		return err
	}

	common.PrintBanner(config, logger)

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()
	defer common.RecoverWithCrashFile(func() {
		logger.Error().Msg("Fatal error during batch - progress was saved at the last checkpoint")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Batch.Schedule == "" {
		summary, err := application.RunBatch(ctx)
		if err != nil {
			return err
		}
		printSummary(summary)
		return nil
	}

	return runScheduled(ctx, application)
}

// runScheduled runs once immediately, then a fresh batch on every tick until a signal arrives
func runScheduled(ctx context.Context, application *app.App) error {
	sched := scheduler.NewService(ctx, logger)

	first := true
	err := sched.RegisterJob("psu-batch", config.Batch.Schedule, func(jobCtx context.Context) error {
		var (
			summary *batch.Summary
			err     error
		)
		if first {
			first = false
			summary, err = application.RunBatch(jobCtx)
		} else {
			summary, err = application.ScheduledRun(jobCtx)
		}
		if err != nil {
			return err
		}
		printSummary(summary)
		return nil
	})
	if err != nil {
		return err
	}

	if err := sched.Start(); err != nil {
		return err
	}
	common.SafeGo(logger, "initial-batch", func() {
		sched.RunNow()
	})

	if status, ok := sched.GetStatus(); ok {
		logger.Info().
			Str("schedule", status.Schedule).
			Str("next_run", status.NextRun.Format(time.RFC3339)).
			Msg("Scheduled mode - press Ctrl+C to stop")
	}

	<-ctx.Done()
	logger.Info().Msg("Interrupt signal received, waiting for the running batch to save")
	sched.Stop()
	return nil
}

func printSummary(s *batch.Summary) {
	st := s.Stats
	fmt.Println()
	fmt.Printf("Run %s finished in %s\n", s.RunID, s.Elapsed.Round(time.Second))
	if s.Interrupted {
		fmt.Println("Run was interrupted - rerun to resume from saved progress")
	}
	fmt.Printf("  Processed:             %d/%d (%d skipped as already done)\n", st.ProcessedTickers, st.TotalTickers, st.SkippedTickers)
	fmt.Printf("  Successful:            %d\n", st.SuccessfulExtractions)
	fmt.Printf("  Single-target rejects: %d\n", st.SingleTargetRejections)
	fmt.Printf("  Validation rejects:    %d\n", st.ValidationRejections)
	fmt.Printf("  Failed:                %d (%d after retries)\n", st.FailedExtractions, st.PermanentlyFailed)
	fmt.Printf("  Rate limits:           api=%d sec=%d\n", st.RateLimitErrors, st.SECRateLimitErrors)
	fmt.Printf("  High upside:           %d\n", s.HighUpside)
	fmt.Printf("  Low upside:            %d\n", s.LowUpside)
	if s.Files.Main != "" {
		fmt.Printf("  Results:               %s\n", s.Files.Main)
	}
}
