package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moolen/spectre/internal/api"
	"github.com/moolen/spectre/internal/config"
	"github.com/moolen/spectre/internal/lifecycle"
	"github.com/moolen/spectre/internal/llm"
	"github.com/moolen/spectre/internal/logging"
	"github.com/moolen/spectre/internal/pipeline"
	"github.com/moolen/spectre/internal/searchstore"
)

var configPath string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Spectre server",
	Long: `Start the Spectre server, which polls the log backend on a fixed
interval, classifies and clusters new records, writes the results back,
evaluates the alert threshold, and serves the read-only HTTP API.`,
	Run: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&configPath, "config", "./config.yaml", "Path to the YAML configuration file")
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		HandleError(err, "Configuration error")
	}

	cfg.LogLevelFlags = logLevelFlags
	if err := setupLog(cfg.LogLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("server")
	logger.Info("Starting Spectre v%s", Version)
	logger.DebugWithFields("configuration loaded",
		logging.Field("api_port", cfg.APIPort),
		logging.Field("backend_url", cfg.BackendURL),
		logging.Field("log_index_prefix", cfg.LogIndexPrefix))

	backend := searchstore.NewClient(cfg.BackendURL, cfg.BackendQueryTimeout)

	ctx := context.Background()
	initialCatalog, err := backend.ListTemplates(ctx, cfg.TemplatesIndex)
	if err != nil {
		logger.ErrorWithErr("failed to load existing template catalog, starting from an empty catalog", err)
		initialCatalog = nil
	}
	logger.InfoWithFields("catalog loaded", logging.Field("templates", len(initialCatalog)))

	cursorStore := pipeline.NewCursorStore(cfg.CursorFilePath)

	writer := pipeline.NewWriter(backend, cfg.TemplatesIndex)

	alerterDefaults := pipeline.AlertConfigDefaults{
		WindowHours:     cfg.Alert.WindowHours,
		Threshold:       cfg.Alert.Threshold,
		Levels:          cfg.Alert.Levels,
		CooldownSeconds: cfg.Alert.CooldownSeconds,
		WebhookURL:      cfg.Alert.WebhookURL,
	}
	alerter := pipeline.NewAlerter(backend, cfg.LogIndexPrefix, alerterDefaults)

	watcher, err := config.WatchAlertConfig(configPath, func(ad config.AlertDefaults) {
		logger.InfoWithFields("alert configuration hot-reloaded",
			logging.Field("threshold", ad.Threshold), logging.Field("window_hours", ad.WindowHours))
		alerter.UpdateDefaults(pipeline.AlertConfigDefaults{
			WindowHours:     ad.WindowHours,
			Threshold:       ad.Threshold,
			Levels:          ad.Levels,
			CooldownSeconds: ad.CooldownSeconds,
			WebhookURL:      ad.WebhookURL,
		})
	})
	if err != nil {
		logger.WarnWithFields("failed to start config file watcher, hot reload disabled", logging.Field("error", err.Error()))
	}

	scheduler := pipeline.NewScheduler(backend, cursorStore, writer, alerter, cfg.LogIndexPrefix, initialCatalog)

	analyzer := llm.NewAnalyzer(cfg.LLMAPIKey, cfg.LLMModel)
	apiServer := api.NewServer(cfg.APIPort, cfg.LogIndexPrefix, backend, analyzer)

	manager := lifecycle.NewManager()
	if err := manager.Register(scheduler); err != nil {
		HandleError(err, "Scheduler registration error")
	}
	if err := manager.Register(apiServer, scheduler); err != nil {
		HandleError(err, "API server registration error")
	}

	startCtx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(startCtx); err != nil {
		HandleError(err, "Startup error")
	}
	logger.Info("All components started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received, gracefully shutting down...")
	cancel()

	if watcher != nil {
		watcher.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.ErrorWithErr("error during shutdown", err)
	}

	logger.Info("Shutdown complete")
}
