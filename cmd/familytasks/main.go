package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"family-tasks/internal/api"
	"family-tasks/internal/bot"
	"family-tasks/internal/config"
	"family-tasks/internal/export"
	"family-tasks/internal/service"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "familytasks",
		Short:         "Family task tracker: HTTP API, Telegram bot and reports",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (env vars override it)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the Telegram bot and scheduled digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(a.tasks, a.family, a.digests, a.exporter)

	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg.TelegramToken, a.subscribers, a.tasks, a.family, a.digests)
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	} else {
		log.Println("[info] TELEGRAM_TOKEN not set, bot disabled")
	}

	scheduler := service.NewSchedulerService(loc)
	if telegramBot != nil {
		sendReports := func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("report: %v", err)
			}
		}
		if _, err := scheduler.ScheduleDigests(cfg.ReportInterval, cfg.DailyReportAt, sendReports); err != nil {
			return err
		}
	}
	if scheduler.Entries() > 0 {
		scheduler.Start()
		defer scheduler.Stop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx, cfg.HTTPAddr); err != nil {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	if telegramBot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("bot: %w", err)
			}
		}()
	}

	log.Println("[info] family tasks started")
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	cancel()
	wg.Wait()
	if err == nil {
		select {
		case err = <-errCh:
		default:
		}
	}
	log.Println("[info] shutdown complete")
	return err
}

func reportCmd() *cobra.Command {
	var send bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the family digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			digest, err := a.digests.Build(cmd.Context(), time.Now().In(loc))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), service.FormatText(digest))

			if !send {
				return nil
			}
			if cfg.TelegramToken == "" {
				return errors.New("--send needs TELEGRAM_TOKEN")
			}
			telegramBot, err := bot.New(cfg.TelegramToken, a.subscribers, a.tasks, a.family, a.digests)
			if err != nil {
				return fmt.Errorf("bot: %w", err)
			}
			return telegramBot.SendReports(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&send, "send", false, "also push the digest to subscribed Telegram chats")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tasks, stats and family progress",
		Long: `Export the current tasks with their statistics and family progress.

Examples:
  familytasks export --format csv --out tasks.csv
  familytasks export --format pdf --out report.pdf
  SEED_DEMO=true familytasks export --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.exporter.Export(cmd.Context(), format)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			toFile := out != "" && out != "-"
			if toFile {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			if toFile {
				log.Printf("[info] wrote %d bytes of %s to %s", len(data), format, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "one of "+strings.Join(export.Formats, ", "))
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
