package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/app"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/server"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverPortP  = flag.Int("p", 0, "Server port (shorthand, overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// One-shot mode: generate a single article and exit instead of serving
	writeKeyword     = flag.String("keyword", "", "Run one synchronous generation for this keyword and exit")
	writeCompanyURL  = flag.String("company-url", "", "Company URL for one-shot generation")
	writeInstruction = flag.String("instruction", "", "Optional content instruction for one-shot generation")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	flag.Parse()
	common.LoadVersionFromFile()

	if *showVersion || *showVersionV {
		fmt.Printf("Scriptor version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Merge port flags (shorthand takes precedence)
	finalPort := *serverPort
	if *serverPortP != 0 {
		finalPort = *serverPortP
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("scriptor.toml"); err == nil {
			configFiles = append(configFiles, "scriptor.toml")
		} else if _, err := os.Stat("deployments/local/scriptor.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/scriptor.toml")
		}
	}

	// Load configuration (defaults -> files -> env), then apply CLI overrides
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, finalPort, *serverHost)

	common.PrintBanner(common.GetVersion())

	application, err := app.New(config)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	logger := application.Logger

	if *writeKeyword != "" {
		os.Exit(runOneShot(application, logger))
	}

	logger.Info().
		Strs("config_files", configFiles).
		Int("port", config.Server.Port).
		Str("host", config.Server.Host).
		Str("storage_path", config.Storage.Badger.Path).
		Msg("Application configuration loaded")

	application.Start()

	shutdownChan := make(chan struct{})

	srv := server.New(application)
	srv.SetShutdownChannel(shutdownChan)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Fatal().Str("panic", fmt.Sprintf("%v", r)).Msg("Server goroutine panicked")
			}
		}()

		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Give goroutine a moment to start
	time.Sleep(100 * time.Millisecond)

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info().Msg("Interrupt signal received, shutting down")
	case <-shutdownChan:
		logger.Info().Msg("Shutdown requested via HTTP")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := application.Close(ctx); err != nil {
		logger.Error().Err(err).Msg("Application shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}

// runOneShot generates a single article synchronously and reports the result
func runOneShot(application *app.App, logger arbor.ILogger) int {
	config := &models.JobConfig{
		PrimaryKeyword:     *writeKeyword,
		CompanyURL:         *writeCompanyURL,
		ContentInstruction: *writeInstruction,
	}
	if missing := config.MissingFields(); len(missing) > 0 {
		logger.Error().Strs("missing", missing).Msg("One-shot generation requires -keyword and -company-url")
		return 1
	}
	config.Normalize()

	jobID := uuid.New().String()
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(config.MaxDurationMinutes)*time.Minute)
	defer cancel()

	logger.Info().
		Str("job_id", jobID).
		Str("keyword", config.PrimaryKeyword).
		Msg("Starting one-shot generation")

	ec, err := application.Executor.Execute(ctx, jobID, config, nil)
	if err != nil {
		logger.Error().Err(err).Str("job_id", jobID).Msg("One-shot generation failed")
		return 1
	}

	logger.Info().
		Str("job_id", jobID).
		Str("article_id", ec.StorageResult.ArticleID).
		Str("mirror_path", ec.StorageResult.MirrorPath).
		Msg("One-shot generation completed")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := application.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Application shutdown failed")
	}
	return 0
}
