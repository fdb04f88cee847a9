package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/file-manager/internal/config"
	"github.com/bigkaa/goartstore/file-manager/internal/database"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Однократная очистка: просроченные и давно удалённые файлы, orphan-объекты",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.cleanup.RunOnce(ctx)
		if errors.Is(err, service.ErrCleanupRunning) {
			a.logger.Warn("Очистка уже выполняется другим процессом, запуск пропущен")
			return nil
		}
		if result != nil {
			if encErr := json.NewEncoder(cmd.OutOrStdout()).Encode(result); encErr != nil {
				return encErr
			}
		}
		return err
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Применение миграций БД",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("загрузка конфигурации: %w", err)
		}
		logger := config.SetupLogger(cfg)
		if err := database.Migrate(cfg, logger); err != nil {
			return err
		}
		logger.Info("Миграции применены")
		return nil
	},
}

var analyticsUserID int64

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Агрегаты по неудалённым файлам (JSON в stdout)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var userID *int64
		if cmd.Flags().Changed("user-id") {
			userID = &analyticsUserID
		}

		analytics, err := a.fileManager.GetFileAnalytics(cmd.Context(), userID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(analytics)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Версия File Manager",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.Version)
	},
}

func init() {
	analyticsCmd.Flags().Int64Var(&analyticsUserID, "user-id", 0, "ограничить статистику файлами пользователя")
}
