package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"hackathonhub.shikanime.studio/internal/database"
	"hackathonhub.shikanime.studio/internal/hackathon"
	"hackathonhub.shikanime.studio/internal/hub"
	hubhttp "hackathonhub.shikanime.studio/internal/hub/http"
	"hackathonhub.shikanime.studio/internal/provider"
)

func runServer(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	h, err := hub.NewForConfig(ctx, cfg)
	if err != nil {
		return err
	}
	srv := hubhttp.NewServer(h, cfg)
	defer func() {
		if err := srv.Close(); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.GetAddr())
	}()
	if schedule, _ := cmd.Flags().GetBool("schedule"); schedule {
		go func() {
			if err := h.Sources().Schedule(ctx, cfg.GetScheduleInterval()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("scheduler stopped", "error", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed", "error", err)
		}
		return err
	case <-ctx.Done():
		slog.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		slog.Info("server stopped")
		return nil
	}
}

func runMigrateUp(_ *cobra.Command, _ []string) error {
	mg, err := database.NewMigratorForConfig(cfg)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}

func runMigrateDown(_ *cobra.Command, _ []string) error {
	mg, err := database.NewMigratorForConfig(cfg)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Down()
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	url, _ := cmd.Flags().GetString("url")
	name, _ := cmd.Flags().GetString("provider")

	h, err := hub.NewForConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	report, err := h.Orchestrator().Run(ctx, url, hackathon.ParseProvider(name))
	if err != nil {
		return err
	}
	if report.FetchErr != nil {
		return report.FetchErr
	}
	if errors.Is(report.ParseErr, provider.ErrUnknownProvider) {
		return report.ParseErr
	}
	return printJSON(cmd.OutOrStdout(), report)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	h, err := hub.NewForConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	every := cfg.GetScheduleInterval()
	slog.InfoContext(ctx, "scheduler starting", "every", every)
	if err := h.Sources().Schedule(ctx, every); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runEmbeddingsRefresh(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	h, err := hub.NewForConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	n, err := h.Core().RefreshEmbeddings(ctx, cfg.GetEmbeddingsTTL())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d embeddings\n", n)
	return nil
}
