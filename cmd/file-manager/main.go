// Точка входа File Manager — хранение документов пользователей.
// Команды: serve (HTTP API), cleanup (однократная очистка), migrate,
// analytics, version.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "file-manager",
	Short:        "Хранение, выдача и очистка файлов пользователей",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, cleanupCmd, migrateCmd, analyticsCmd, versionCmd)
}
