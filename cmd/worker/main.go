package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"projecthub/internal/app"
	"projecthub/internal/pkg/logger"
	"projecthub/internal/platform/config"
	"projecthub/internal/platform/database"
	"projecthub/internal/workers"
)

var (
	configPath string
	jsonOutput bool

	cfg *config.Config
	db  *sql.DB
	svc *app.Services
)

var rootCmd = &cobra.Command{
	Use:           "worker",
	Short:         "ProjectHub background jobs",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Logging)

		db, err = database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if _, err := database.Migrate(cmd.Context(), db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		svc = app.New(cfg, db, app.Options{})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if svc != nil {
			svc.Close()
		}
		if db != nil {
			db.Close()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")

	rootCmd.AddCommand(runCmd(), onceCmd(workers.JobReminders, "Send due-date reminders"),
		onceCmd(workers.JobRecurring, "Materialize recurring tasks"),
		onceCmd(workers.JobDigest, "Send the daily email digest"),
		onceCmd(workers.JobInvitationSweep, "Expire overdue invitations"),
		allCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every job on its configured interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Dur("reminders", cfg.Jobs.ReminderInterval).
				Dur("recurring", cfg.Jobs.RecurringInterval).
				Dur("digest", cfg.Jobs.DigestInterval).
				Dur("invitation_sweep", cfg.Jobs.InvitationSweepInterval).
				Msg("Worker starting")
			svc.Runner().Schedule(cmd.Context(), cfg.Jobs)
			log.Info().Msg("Worker stopped")
			return nil
		},
	}
}

func onceCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := svc.Runner().RunJob(cmd.Context(), name)
			if err != nil {
				return err
			}
			return printSummaries([]workers.Summary{summary})
		},
	}
}

func allCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run every job once",
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := svc.Runner().RunAll(cmd.Context())
			if perr := printSummaries(summaries); perr != nil {
				return perr
			}
			return err
		},
	}
}

func printSummaries(summaries []workers.Summary) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Job", "Scanned", "Succeeded", "Failed", "Duration"})
	for _, s := range summaries {
		tw.AppendRow(table.Row{s.Job, s.Scanned, s.Succeeded, s.Failed, s.Duration.Round(time.Millisecond)})
	}
	tw.Render()
	return nil
}
