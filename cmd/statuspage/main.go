// Command statuspage runs the status page server and its database migrations.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			slog.Error("failed to load .env file", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if err := newRootCommand().Execute(); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
