package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/angelar/arsession/internal/asset"
	"github.com/angelar/arsession/internal/config"
	"github.com/angelar/arsession/internal/dispatcher"
	"github.com/angelar/arsession/internal/handlers"
	"github.com/angelar/arsession/internal/logging"
	"github.com/angelar/arsession/internal/monitor"
	intOtel "github.com/angelar/arsession/internal/otel"
	"github.com/angelar/arsession/internal/render"
	"github.com/angelar/arsession/internal/session"
	"github.com/angelar/arsession/internal/tracking"
	"github.com/angelar/arsession/internal/uibridge"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	ExtensionName string = "arsession"
)

const shutdownTimeout = 10 * time.Second

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet(ExtensionName, pflag.ContinueOnError)
	configDir := fs.StringP("config", "c", ".", "directory containing "+config.FileName+".json")
	fs.StringP("asset", "a", "", "glTF/GLB asset URL or file path")
	fs.StringP("query", "q", "", "page query string, e.g. index=2")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("storage", "", "storage backend (memory, sqlite, postgres, websocket)")
	fs.String("listen", "", "page bridge listen address")
	showVersion := fs.BoolP("version", "v", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", ExtensionName, CurrentVersion, BuildDate)
		return nil
	}

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.BindFlags(fs); err != nil {
		return err
	}
	if err := config.Load(*configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	start := time.Now()
	logFile, err := openLogFile(config.GetString("logsDir"), start)
	if err != nil {
		return err
	}
	defer logFile.Close()

	closeLogging, err := setupLogging(logFile)
	if err != nil {
		return err
	}
	defer closeLogging()

	config.Watch(func(e fsnotify.Event) {
		SlogManager.SetLevel(config.GetString("logLevel"))
		Logger.Info("Config reloaded", "file", e.Name, "logLevel", config.GetString("logLevel"))
	})

	Logger.Info("Starting up...", "version", CurrentVersion, "buildDate", BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := initStorage(ctx, logFile)
	if err != nil {
		return err
	}

	query, err := url.ParseQuery(config.GetString("page.query"))
	if err != nil {
		Logger.Warn("Ignoring malformed page query", "error", err)
	}

	hub := uibridge.NewHub(Logger.With("component", "uibridge"))
	renderer := render.NewSceneRenderer(Logger.With("component", "render"), hub)

	var controller *session.Controller
	sessionLogger := SlogManager.WithContext(func() []slog.Attr {
		if controller == nil {
			return nil
		}
		return []slog.Attr{
			slog.String("session", controller.ID()),
			slog.String("state", controller.State().String()),
		}
	})

	controller, err = session.New(session.Config{
		AssetURL:    config.GetString("asset.url"),
		TargetIndex: session.ParseTargetIndex(query),
	}, session.Dependencies{
		Loader:    newLoader(),
		Tracker:   newTracker(),
		Renderer:  renderer,
		Scheduler: render.NewTickerScheduler(config.GetRenderConfig().FPS),
		UI:        hub.UICallbacks(),
		Recorder:  rec.recorders,
		Logger:    sessionLogger,
	})
	if err != nil {
		rec.close(ctx)
		return fmt.Errorf("failed to create session controller: %w", err)
	}

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(
		logging.NewZerolog(logFile, config.GetString("logLevel"), "dispatcher"),
	))
	if err != nil {
		rec.close(ctx)
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	handlers.NewManager(handlers.Dependencies{
		Controller: controller,
		Levels:     SlogManager,
	}).RegisterHandlers(eventDispatcher)
	hub.Attach(controller, eventDispatcher)

	monitorService := monitor.NewService(monitor.Dependencies{
		Status:       controller,
		Logger:       Logger.With("component", "monitor"),
		OutputDir:    config.GetString("logsDir"),
		QueueLengths: rec.queueLengths(),
	})
	if err := monitorService.Start(); err != nil {
		Logger.Warn("Failed to start status monitor", "error", err)
	}

	server := &http.Server{
		Addr:              config.GetBridgeConfig().Listen,
		Handler:           hub.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		Logger.Info("Page bridge listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Error("Page bridge stopped", "error", err)
			stop()
		}
	}()

	rec.startSession(controller.Status(), start)

	// page load
	if _, err := eventDispatcher.Dispatch(dispatcher.Event{
		Command:   handlers.CommandLoad,
		Source:    "startup",
		Timestamp: time.Now(),
	}); err != nil {
		Logger.Error("Failed to begin load", "error", err)
	}

	runErr := controller.Run(ctx)
	Logger.Info("Shutting down...", "state", controller.State().String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := hub.Close(); err != nil {
		Logger.Warn("Failed to close page bridge", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		Logger.Warn("Failed to shut down page bridge server", "error", err)
	}
	eventDispatcher.Close()
	monitorService.Stop()

	rec.endSession(shutdownCtx, controller.Status())
	rec.close(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func openLogFile(logsDir string, start time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	path := logging.LogFilePath(logsDir, ExtensionName, start)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// setupLogging installs the file, OTel and Graylog handlers. The returned
// func flushes and closes them.
func setupLogging(logFile *os.File) (func(), error) {
	level := config.GetString("logLevel")
	otelCfg := config.GetOTelConfig()

	var metricWriter io.Writer
	if otelCfg.Enabled {
		f, err := os.OpenFile(filepath.Join(config.GetString("logsDir"), ExtensionName+".metrics.jsonl"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open metrics file: %w", err)
		}
		metricWriter = f
	}

	var err error
	OTelProvider, err = intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logFile,
		MetricWriter: metricWriter,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTel: %w", err)
	}

	var extra []slog.Handler
	var gelfCloser io.Closer
	if gl := config.GetGraylogConfig(); gl.Enabled {
		h, closer, err := logging.NewGELFHandler(gl.Address, SlogManager.HandlerOptions())
		if err != nil {
			Logger.Warn("Failed to connect to Graylog, continuing without it", "address", gl.Address, "error", err)
		} else {
			extra = append(extra, h)
			gelfCloser = closer
		}
	}

	SlogManager.Setup(io.MultiWriter(os.Stdout, logFile), level, OTelProvider.LoggerProvider(), extra...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging configured", "level", level, "otel", OTelProvider.Enabled(), "graylog", gelfCloser != nil)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := SlogManager.Flush(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "log flush failed:", err)
		}
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "otel shutdown failed:", err)
		}
		if c, ok := metricWriter.(io.Closer); ok {
			c.Close()
		}
		if gelfCloser != nil {
			gelfCloser.Close()
		}
	}, nil
}

func newLoader() *asset.HTTPLoader {
	cfg := config.GetAssetConfig()
	opts := []asset.Option{
		asset.WithLogger(Logger.With("component", "asset")),
		asset.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.DecoderURL != "" {
		opts = append(opts, asset.WithGeometryDecoder(asset.NewRemoteDecoder(cfg.DecoderURL)))
	}
	return asset.NewHTTPLoader(opts...)
}

func newTracker() *tracking.Client {
	cfg := config.GetTrackingConfig()
	return tracking.NewClient(cfg.URL, tracking.Options{
		ImageTargetSrc:  cfg.ImageTargetSrc,
		FilterMinCF:     cfg.FilterMinCF,
		FilterBeta:      cfg.FilterBeta,
		WarmupTolerance: cfg.WarmupTolerance,
		MissTolerance:   cfg.MissTolerance,
		StartTimeout:    cfg.StartTimeout,
	}, Logger.With("component", "tracking"))
}
