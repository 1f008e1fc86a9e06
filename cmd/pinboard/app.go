package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/storepins/pinboard/internal/cache"
	"github.com/storepins/pinboard/internal/config"
	"github.com/storepins/pinboard/internal/database"
	"github.com/storepins/pinboard/internal/dispatcher"
	"github.com/storepins/pinboard/internal/editor"
	"github.com/storepins/pinboard/internal/handlers"
	"github.com/storepins/pinboard/internal/logging"
	"github.com/storepins/pinboard/internal/markers"
	"github.com/storepins/pinboard/internal/media"
	intOtel "github.com/storepins/pinboard/internal/otel"
	"github.com/storepins/pinboard/internal/storage"
	"github.com/storepins/pinboard/internal/worker"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const appName = "pinboard"

// app wires one session: logging, the remote store, the marker store and
// the editor.
type app struct {
	logs    *logging.SlogManager
	logger  *slog.Logger
	logFile *os.File
	graylog io.Closer
	otel    *intOtel.Provider

	storageType string
	backend     storage.Backend
	persister   *worker.Manager
	store       *markers.Store
	editor      *editor.Session
	dispatcher  *dispatcher.Dispatcher
}

func newApp(ctx context.Context, configDir string) (*app, error) {
	a := &app{logs: logging.NewSlogManager()}
	a.logs.Setup(logging.Options{Level: "info"})
	a.logger = a.logs.Logger()

	if err := config.Load(configDir); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.logger.Debug("Loaded config", "dir", configDir)
	}

	a.setupLogging(ctx)

	storageCfg := config.GetStorageConfig()
	a.storageType = storageCfg.Type
	dbLog := database.NewLogger(a.logWriter(), config.GetString("logLevel"))

	backend, err := createStorageBackend(storageCfg, a.logs.Component("storage"), dbLog)
	if err != nil {
		a.logger.Error("Failed to create storage backend", "error", err)
		return nil, errors.Join(err, a.Close())
	}
	if err := backend.Init(ctx); err != nil {
		a.logger.Error("Failed to initialize storage backend", "error", err)
		return nil, errors.Join(err, a.Close())
	}
	a.backend = backend

	persistCfg := config.GetPersistConfig()
	mode, err := worker.ParseMode(persistCfg.Mode)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	a.persister, err = worker.NewManager(worker.Dependencies{
		Backend: backend,
		Cache:   cache.NewRemoteIDCache(),
		Logger:  logging.NewDispatcherLogger(a.logs.Component("persist")),
		Mode:    mode,
		Timeout: persistCfg.Timeout,
	})
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.store, err = markers.New(markers.Dependencies{
		Backend:   backend,
		Persister: a.persister,
		Logger:    a.logs.Component("markers"),
	})
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	a.editor = editor.NewSession(a.store)

	a.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(a.logger))
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	pickers, err := newPickerFactory(config.GetMediaConfig(), a.logger)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	handlers.NewService(handlers.Dependencies{
		Store:   a.store,
		Editor:  a.editor,
		Pickers: pickers,
		Logger:  a.logs.Component("handlers"),
	}).RegisterHandlers(a.dispatcher)

	a.logger.Info("Session ready", "storage", a.storageType, "persistMode", mode)
	return a, nil
}

// setupLogging opens the log file, Graylog and OTel sinks from config and
// rebuilds the logger with them.
func (a *app) setupLogging(ctx context.Context) {
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		a.logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	} else {
		path := logging.LogFilePath(logsDir, appName, time.Now())
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			a.logger.Error("Failed to create/open log file!", "error", err, "path", path)
		} else {
			a.logFile = f
			a.logger.Info("Begin logging in logs directory", "path", path)
		}
	}

	var graylog io.Writer
	if config.GetBool("graylog.enabled") {
		w, err := logging.NewGraylogWriter(config.GetString("graylog.address"))
		if err != nil {
			a.logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			graylog = w
			a.graylog = w
		}
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		p, err := intOtel.New(ctx, intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    a.fileWriter(),
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			a.otel = p
			a.logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	var provider *sdklog.LoggerProvider
	if a.otel != nil {
		provider = a.otel.LoggerProvider()
	}
	a.logs.Setup(logging.Options{
		Level:    config.GetString("logLevel"),
		File:     a.fileWriter(),
		Graylog:  graylog,
		Provider: provider,
		Context:  a.logContext,
	})
	a.logger = a.logs.Logger()
}

func (a *app) logContext(context.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("storage", a.storageType)}
	if a.store != nil {
		attrs = append(attrs, slog.Int("markers", a.store.Len()))
	}
	return attrs
}

// fileWriter avoids handing a typed nil *os.File to the handlers.
func (a *app) fileWriter() io.Writer {
	if a.logFile == nil {
		return nil
	}
	return a.logFile
}

func (a *app) logWriter() io.Writer {
	if w := a.fileWriter(); w != nil {
		return w
	}
	return os.Stdout
}

// Close waits for background writes, then releases the backend and the
// log sinks.
func (a *app) Close() error {
	var errs []error
	if a.persister != nil {
		a.persister.Wait()
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.logs.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.graylog != nil {
		_ = a.graylog.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
	return errors.Join(errs...)
}

// newPickerFactory returns a file picker per request, wrapped in an object
// store upload when media.uploadEnabled is set.
func newPickerFactory(cfg config.MediaConfig, logger *slog.Logger) (handlers.PickerFactory, error) {
	if !cfg.UploadEnabled {
		return func(req handlers.PickRequest) media.Picker {
			return media.NewFilePicker(req.Path)
		}, nil
	}

	client, err := media.NewMinioClient(cfg.Minio)
	if err != nil {
		return nil, err
	}
	logger.Info("Image upload enabled", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Bucket)
	return func(req handlers.PickRequest) media.Picker {
		return media.NewObjectStorePicker(media.NewFilePicker(req.Path), client, cfg.Bucket)
	}, nil
}

// configDirDefault is the directory holding pinboard.cfg.json when --config
// is not given.
func configDirDefault() string {
	if dir := os.Getenv("PINBOARD_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "."
}
