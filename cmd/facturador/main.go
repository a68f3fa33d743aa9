package main

import (
	"log/slog"
	"os"

	"github.com/JonMunkholm/facturador/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	// Existing environment wins over .env.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	} else {
		slog.Debug("loaded .env file")
	}

	os.Exit(cli.Execute())
}
