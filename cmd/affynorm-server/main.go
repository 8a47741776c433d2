package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"affynorm/internal/app"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults to affynorm.yaml or config.yaml if present)")
	baseDir := flag.String("base", "", "directory relative output paths are resolved against (defaults to the working directory)")
	flag.Parse()

	application, err := app.NewApplication(app.Options{
		ConfigPath: *configPath,
		BaseDir:    *baseDir,
	})
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
