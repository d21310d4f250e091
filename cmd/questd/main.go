package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lawnchairsociety/questengine/internal/config"
	"github.com/lawnchairsociety/questengine/internal/database"
	"github.com/lawnchairsociety/questengine/internal/logger"
	"github.com/lawnchairsociety/questengine/internal/quest"
	"github.com/lawnchairsociety/questengine/internal/server"
	"github.com/lawnchairsociety/questengine/internal/telemetry"
	"github.com/lawnchairsociety/questengine/internal/text"
)

func main() {
	serverConfigFile := flag.String("config", "data/server.yaml", "Path to server config YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	questsDir := flag.String("quests", "", "Path to quest definitions directory (overrides config)")
	textFile := flag.String("text", "", "Path to notification text YAML file (overrides config)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	// Initialize logger first (before any logging)
	logConfig, err := logger.LoadConfig(*loggingConfig)
	if err != nil {
		log.Printf("Logging config problem, using defaults: %v", err)
	}
	if err := logger.Initialize(logConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Info("Starting quest server")

	cfg, err := config.LoadConfig(*serverConfigFile)
	if err != nil {
		logger.Error("Failed to load server config", "path", *serverConfigFile, "error", err)
		os.Exit(1)
	}
	if *questsDir != "" {
		cfg.Catalog.Directory = *questsDir
	}
	if *textFile != "" {
		cfg.Catalog.TextPath = *textFile
	}
	if *addr != "" {
		cfg.WebSocket.Address = *addr
	}

	if len(cfg.WebSocket.AllowedOrigins) == 0 {
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	} else if len(cfg.WebSocket.AllowedOrigins) == 1 && cfg.WebSocket.AllowedOrigins[0] == "*" {
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	} else {
		logger.Info("WebSocket CORS policy", "allowed_origins", cfg.WebSocket.AllowedOrigins)
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName)
	if err != nil {
		logger.Warning("Tracing disabled", "error", err)
	}
	defer shutdownTracing(ctx)

	catalog := quest.NewCatalog()
	if err := catalog.LoadFromDirectory(cfg.Catalog.Directory); err != nil {
		logger.Warning("Failed to load quest catalog, starting empty", "dir", cfg.Catalog.Directory, "error", err)
	} else {
		logger.Info("Quests loaded", "count", catalog.Count(), "dir", cfg.Catalog.Directory)
	}
	for _, problem := range catalog.Validate() {
		logger.Warning("Catalog problem", "problem", problem)
	}

	txt := text.Default()
	if cfg.Catalog.TextPath != "" {
		loaded, err := text.Load(cfg.Catalog.TextPath)
		if err != nil {
			logger.Warning("Failed to load text config, using fallback text", "path", cfg.Catalog.TextPath, "error", err)
		} else {
			txt = loaded
			logger.Info("Text system loaded", "path", cfg.Catalog.TextPath)
		}
	}

	db, err := database.OpenWithConfig(cfg.Database)
	if err != nil {
		logger.Error("Failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Quest database initialized", "driver", cfg.Database.Driver)

	srv := server.NewServer(cfg, db, catalog, txt)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("WebSocket server error: %v", err)
		}
	}()

	logger.Info("Quest server running", "address", cfg.WebSocket.Address)
	logger.Info("Press Ctrl+C to shutdown")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server")
	srv.Shutdown()
	logger.Info("Server stopped")
	if err := logger.Close(); err != nil {
		log.Printf("Failed to close log file: %v", err)
	}
}
