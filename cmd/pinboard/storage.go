package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"
	"github.com/storepins/pinboard/internal/config"
	"github.com/storepins/pinboard/internal/storage"
	"github.com/storepins/pinboard/internal/storage/memory"
	mongostorage "github.com/storepins/pinboard/internal/storage/mongo"
	pgstorage "github.com/storepins/pinboard/internal/storage/postgres"
	"github.com/storepins/pinboard/internal/storage/rest"
	sqlitestorage "github.com/storepins/pinboard/internal/storage/sqlite"
	wsstorage "github.com/storepins/pinboard/internal/storage/websocket"
)

func createStorageBackend(storageCfg config.StorageConfig, logger *slog.Logger, dbLog zerolog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		logger.Info("Postgres storage backend selected", "host", storageCfg.Postgres.Host, "database", storageCfg.Postgres.Database)
		return pgstorage.New(pgstorage.Dependencies{
			Config: storageCfg.Postgres,
			Logger: logger,
			DBLog:  dbLog,
		}), nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, logger, dbLog)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend selected", "path", storageCfg.SQLite.Path)
		return backend, nil

	case "mongo":
		logger.Info("MongoDB storage backend selected", "database", storageCfg.Mongo.Database, "collection", storageCfg.Mongo.Collection)
		return mongostorage.New(mongostorage.Dependencies{
			Config: storageCfg.Mongo,
			Logger: logger,
		}), nil

	case "http":
		logger.Info("HTTP storage backend selected", "url", storageCfg.Remote.URL)
		return rest.New(storageCfg.Remote.URL, storageCfg.Remote.Secret, storageCfg.Remote.Timeout), nil

	case "websocket":
		wsURL := httpToWS(storageCfg.Remote.URL)
		logger.Info("WebSocket storage backend selected", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:     wsURL,
			Secret:  storageCfg.Remote.Secret,
			Timeout: storageCfg.Remote.Timeout,
		}, logger), nil

	case "", "memory":
		logger.Info("Memory storage backend selected", "snapshot", storageCfg.Memory.SnapshotPath)
		return memory.New(storageCfg.Memory), nil
	}
	return nil, fmt.Errorf("unknown storage type: %q", storageCfg.Type)
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
