package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/maine/news_digest/internal/app"
	"github.com/maine/news_digest/internal/config"
	"github.com/maine/news_digest/internal/schedule"
)

type rootFlags struct {
	configPath string
	envFile    string
	debug      bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "newsdigest",
		Short:         "Keyword news digest mailer",
		Long:          "newsdigest collects keyword news from Naver, Google News and BBC, drops articles already sent today and mails a digest on a fixed schedule.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", config.DefaultPath, "path to config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "path to .env file")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(flags),
		newRunCmd(flags),
		newStatsCmd(flags),
		newPruneCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and send digests at the configured times",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(flags, true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			times, err := schedule.ParseTimes(env.cfg.BatchTimes)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(env.cfg, env.log)
			if err != nil {
				return err
			}
			defer closeStore()

			pipeline, err := buildPipeline(ctx, env, store)
			if err != nil {
				return err
			}

			sched, err := schedule.New(times, func(ctx context.Context) {
				runTick(ctx, env, pipeline)
			}, time.Local, env.log)
			if err != nil {
				return err
			}
			return sched.Run(ctx)
		},
	}
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one batch now",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(flags, true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, closeStore, err := openStore(env.cfg, env.log)
			if err != nil {
				return err
			}
			defer closeStore()

			pipeline, err := buildPipeline(ctx, env, store)
			if err != nil {
				return err
			}
			report, err := runTick(ctx, env, pipeline)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tick %s: fetched %d, new %d, delivered %v (%s)\n",
				report.TickID, report.Fetched, report.Fresh, report.Delivered, report.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's ledger statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(flags, false)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(env.cfg, env.log)
			if err != nil {
				return err
			}
			defer closeStore()

			stats, err := store.Stats(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Date:          %s\n", stats.Date)
			fmt.Fprintf(out, "Sent articles: %d\n", stats.Count)
			if stats.LastUpdated != "" {
				fmt.Fprintf(out, "Last updated:  %s\n", stats.LastUpdated)
			}
			return nil
		},
	}
}

func newPruneCmd(flags *rootFlags) *cobra.Command {
	var keepDays int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete ledger records older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(flags, false)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("keep-days") {
				keepDays = env.cfg.Ledger.KeepDays
			}
			store, closeStore, err := openStore(env.cfg, env.log)
			if err != nil {
				return err
			}
			defer closeStore()

			removed, err := store.Prune(cmd.Context(), keepDays)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d ledger record(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&keepDays, "keep-days", 1, "days of ledger history to keep, including today")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "newsdigest %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// runTick выполняет один тик и логирует итог. Ошибка тика не останавливает планировщик.
func runTick(ctx context.Context, env *environment, pipeline *app.Pipeline) (app.Report, error) {
	report, err := pipeline.Run(ctx)
	if err != nil {
		env.log.Error("batch failed", "tick", report.TickID, "stage", report.Stage.String(), "err", err)
		return report, err
	}
	for _, failed := range report.Failed() {
		env.log.Warn("provider call failed", "tick", report.TickID, "provider", failed.Provider, "keyword", failed.Keyword, "err", failed.Err)
	}
	return report, nil
}
