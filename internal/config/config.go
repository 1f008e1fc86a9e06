package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigFileName is looked up in the directory passed to Load.
const ConfigFileName = "pinboard.cfg.json"

// MemoryConfig holds settings for the in-process backend
type MemoryConfig struct {
	SnapshotPath string `json:"snapshotPath" mapstructure:"snapshotPath"` // loaded on Init, written on Close; ".gz" compresses
}

// SQLiteConfig holds settings for the SQLite remote store backend
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// PostgresConfig holds connection settings for the Postgres backend
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// MongoConfig holds connection settings for the MongoDB backend
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// RemoteConfig is shared by the http and websocket backends
type RemoteConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// StorageConfig selects and configures the remote store backend
type StorageConfig struct {
	Type     string
	Memory   MemoryConfig
	SQLite   SQLiteConfig
	Postgres PostgresConfig
	Mongo    MongoConfig
	Remote   RemoteConfig
}

// PersistConfig controls how committed edits reach the remote store
type PersistConfig struct {
	Mode    string
	Timeout time.Duration
}

// MinioConfig holds S3-compatible object storage credentials
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MediaConfig controls image acquisition
type MediaConfig struct {
	UploadEnabled bool
	Bucket        string
	Minio         MinioConfig
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// HTTPConfig holds settings for the HTTP shell
type HTTPConfig struct {
	Addr string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file and an optional .env.
// A missing config file is not an error; defaults and environment apply.
func Load(configDir string) error {
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading .env file: %v", err)
	}

	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./pinboardlogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.snapshotPath", "")
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "pinboard")

	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "pinboard")
	viper.SetDefault("mongo.collection", "markers")

	viper.SetDefault("remote.url", "http://localhost:5000/api")
	viper.SetDefault("remote.secret", "")
	viper.SetDefault("remote.timeout", "10s")

	viper.SetDefault("persist.mode", "insert")
	viper.SetDefault("persist.timeout", "30s")

	viper.SetDefault("media.uploadEnabled", false)
	viper.SetDefault("media.bucket", "pinboard-images")
	viper.SetDefault("minio.endpoint", "localhost:9000")
	viper.SetDefault("minio.accessKey", "")
	viper.SetDefault("minio.secretKey", "")
	viper.SetDefault("minio.useSSL", false)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "pinboard")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("http.addr", ":8080")

	viper.SetEnvPrefix("PINBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetStorageConfig returns the remote store backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: strings.ToLower(viper.GetString("storage.type")),
		Memory: MemoryConfig{
			SnapshotPath: viper.GetString("storage.memory.snapshotPath"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		Mongo: MongoConfig{
			URI:        viper.GetString("mongo.uri"),
			Database:   viper.GetString("mongo.database"),
			Collection: viper.GetString("mongo.collection"),
		},
		Remote: RemoteConfig{
			URL:     viper.GetString("remote.url"),
			Secret:  viper.GetString("remote.secret"),
			Timeout: viper.GetDuration("remote.timeout"),
		},
	}
}

// GetPersistConfig returns the background write configuration.
func GetPersistConfig() PersistConfig {
	return PersistConfig{
		Mode:    strings.ToLower(viper.GetString("persist.mode")),
		Timeout: viper.GetDuration("persist.timeout"),
	}
}

// GetMediaConfig returns the image acquisition configuration.
func GetMediaConfig() MediaConfig {
	return MediaConfig{
		UploadEnabled: viper.GetBool("media.uploadEnabled"),
		Bucket:        viper.GetString("media.bucket"),
		Minio: MinioConfig{
			Endpoint:  viper.GetString("minio.endpoint"),
			AccessKey: viper.GetString("minio.accessKey"),
			SecretKey: viper.GetString("minio.secretKey"),
			UseSSL:    viper.GetBool("minio.useSSL"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetHTTPConfig returns the HTTP shell configuration.
func GetHTTPConfig() HTTPConfig {
	return HTTPConfig{Addr: viper.GetString("http.addr")}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
