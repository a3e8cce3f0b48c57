package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"media-converter/internal/capability"
	"media-converter/internal/filesystem"
	"media-converter/internal/handlers"
	"media-converter/internal/logging"
	"media-converter/internal/memory"
	"media-converter/internal/metrics"
	"media-converter/internal/middleware"
	"media-converter/internal/session"
	"media-converter/internal/startup"
	"media-converter/internal/transcoder"
)

const (
	statsInterval   = time.Minute
	shutdownTimeout = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the converter and workspace HTTP API. Configuration comes from the
optional CONFIG_FILE and environment variables; see the startup package for
the full list.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// server holds everything the shutdown sequence has to stop.
type server struct {
	api       *http.Server
	metrics   *http.Server
	collector *metrics.Collector
	monitor   *memory.Monitor
	session   *session.Session
	engines   []*transcoder.Transcoder
}

func runServe(_ *cobra.Command, _ []string) error {
	startTime := time.Now()

	startup.LogMemoryConfig(memory.ConfigureFromEnv())

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics()

	converter, err := newTranscoder(config.FFmpegPath, config.ConverterDir)
	if err != nil {
		return err
	}
	shell, err := newTranscoder(config.FFmpegPath, config.WorkspaceDir)
	if err != nil {
		return err
	}

	catalog, err := loadCatalog(config.PresetsFile)
	if err != nil {
		startup.LogFatal("Preset catalog error: %v", err)
	}
	profile := capability.Detect(context.Background(), config.DeviceClass)

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	sess := session.New(converter, session.Options{
		BundleThreshold: config.BundleThreshold,
		MaxArchiveDepth: config.MaxArchiveDepth,
		MaxEntryBytes:   config.MaxUploadBytes,
		LogLines:        config.LogBufferLines,
		Gate:            monitor,
		Catalog:         catalog,
		Profile:         profile,
	})
	ws := newWorkspace(shell)

	h := handlers.New(sess, ws, config)
	router := h.Router()
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)
	startup.LogEngineSetup(config)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = config.CORSOrigins

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	handler := middleware.Compression(middleware.DefaultCompressionConfig())(
		middleware.Logger(loggingConfig)(
			middleware.CORS(corsConfig)(router)))

	srv := &server{
		api: &http.Server{
			Addr:         ":" + config.Port,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		monitor: monitor,
		session: sess,
		engines: []*transcoder.Transcoder{converter, shell},
	}

	if config.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", h.MetricsHandler())
		srv.metrics = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()

		srv.collector = metrics.NewCollector(&statsAdapter{session: sess, workspace: ws}, statsInterval)
		srv.collector.Start()
	}

	// Warm the converter engine in the background; the server reports
	// "starting" until it finishes.
	go func() {
		err := sess.Driver().EnsureEngine(context.Background())
		if err != nil {
			logging.Warn("Engine warm-up failed: %v", err)
		}
		h.MarkReady(err)
	}()

	go srv.handleShutdown()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.api.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	return nil
}

func (s *server) handleShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		s.collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	startup.LogShutdownStep("Stopping engines")
	for _, eng := range s.engines {
		eng.Cleanup()
	}
	startup.LogShutdownStepComplete("Engines stopped")

	startup.LogShutdownStep("Releasing staged inputs")
	s.session.Close(ctx)
	startup.LogShutdownStepComplete("Staged inputs released")

	startup.LogShutdownStep("Stopping memory monitor")
	s.monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	if s.metrics != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := s.metrics.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := s.api.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
