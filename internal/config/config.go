package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagKeys maps command-line flags to the config keys they override.
var FlagKeys = map[string]string{
	"asset":     "asset.url",
	"query":     "page.query",
	"log-level": "logLevel",
	"storage":   "storage.type",
	"listen":    "bridge.listen",
}

// FileName is the config file looked up in the config directory.
const FileName = "arsession.cfg.json"

// AssetConfig holds where the model comes from
type AssetConfig struct {
	URL        string        `json:"url" mapstructure:"url"`
	DecoderURL string        `json:"decoderUrl" mapstructure:"decoderUrl"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
}

// TrackingConfig holds the tracker endpoint and tuning forwarded on start
type TrackingConfig struct {
	URL             string        `json:"url" mapstructure:"url"`
	ImageTargetSrc  string        `json:"imageTargetSrc" mapstructure:"imageTargetSrc"`
	FilterMinCF     float64       `json:"filterMinCF" mapstructure:"filterMinCF"`
	FilterBeta      float64       `json:"filterBeta" mapstructure:"filterBeta"`
	WarmupTolerance int           `json:"warmupTolerance" mapstructure:"warmupTolerance"`
	MissTolerance   int           `json:"missTolerance" mapstructure:"missTolerance"`
	StartTimeout    time.Duration `json:"startTimeout" mapstructure:"startTimeout"`
}

// RenderConfig holds frame loop settings
type RenderConfig struct {
	FPS int `json:"fps" mapstructure:"fps"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings. An empty Path keeps
// the database in memory and dumps it every DumpInterval.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// WebSocketConfig points the streaming backend at a session collector
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the recording backend
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds frame telemetry settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// GraylogConfig holds GELF log output settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// BridgeConfig holds the page websocket settings
type BridgeConfig struct {
	Listen string `json:"listen" mapstructure:"listen"`
}

// APIConfig holds the recording upload server settings
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("defaultTag", "AR")
	viper.SetDefault("logsDir", "./arlogs")
	viper.SetDefault("page.query", "")

	viper.SetDefault("asset.url", "")
	viper.SetDefault("asset.decoderUrl", "")
	viper.SetDefault("asset.timeout", "60s")

	viper.SetDefault("tracking.url", "ws://localhost:8765/track")
	viper.SetDefault("tracking.imageTargetSrc", "")
	viper.SetDefault("tracking.filterMinCF", 0.1)
	viper.SetDefault("tracking.filterBeta", 10.0)
	viper.SetDefault("tracking.warmupTolerance", 1)
	viper.SetDefault("tracking.missTolerance", 1)
	viper.SetDefault("tracking.startTimeout", "10s")

	viper.SetDefault("render.fps", 60)

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "arsession")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "arsession")
	viper.SetDefault("influx.bucket", "frames")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("bridge.listen", ":8080")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "arsession")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// BindFlags lets the flags named in FlagKeys override file values. Flags
// missing from fs are skipped.
func BindFlags(fs *pflag.FlagSet) error {
	for flag, key := range FlagKeys {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// Watch reloads the config file on change and calls onChange afterwards.
func Watch(onChange func(e fsnotify.Event)) {
	viper.OnConfigChange(onChange)
	viper.WatchConfig()
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetAssetConfig returns the asset source settings.
func GetAssetConfig() AssetConfig {
	return AssetConfig{
		URL:        viper.GetString("asset.url"),
		DecoderURL: viper.GetString("asset.decoderUrl"),
		Timeout:    viper.GetDuration("asset.timeout"),
	}
}

// GetTrackingConfig returns the tracker settings.
func GetTrackingConfig() TrackingConfig {
	return TrackingConfig{
		URL:             viper.GetString("tracking.url"),
		ImageTargetSrc:  viper.GetString("tracking.imageTargetSrc"),
		FilterMinCF:     viper.GetFloat64("tracking.filterMinCF"),
		FilterBeta:      viper.GetFloat64("tracking.filterBeta"),
		WarmupTolerance: viper.GetInt("tracking.warmupTolerance"),
		MissTolerance:   viper.GetInt("tracking.missTolerance"),
		StartTimeout:    viper.GetDuration("tracking.startTimeout"),
	}
}

// GetRenderConfig returns the frame loop settings.
func GetRenderConfig() RenderConfig {
	return RenderConfig{FPS: viper.GetInt("render.fps")}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		WebSocket: websocketConfig(),
	}
}

// websocketConfig falls back to the upload server's address and key when
// the collector is not configured separately.
func websocketConfig() WebSocketConfig {
	cfg := WebSocketConfig{
		URL:    viper.GetString("storage.websocket.url"),
		Secret: viper.GetString("storage.websocket.secret"),
	}
	if cfg.URL == "" {
		cfg.URL = HTTPToWS(viper.GetString("api.serverUrl")) + "/api/sessions"
	}
	if cfg.Secret == "" {
		cfg.Secret = viper.GetString("api.apiKey")
	}
	return cfg
}

// HTTPToWS converts an HTTP(S) URL to a WebSocket URL.
func HTTPToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the telemetry settings.
func GetInfluxConfig() InfluxConfig {
	var cfg InfluxConfig
	if err := viper.UnmarshalKey("influx", &cfg); err != nil {
		return InfluxConfig{}
	}
	return cfg
}

// GetGraylogConfig returns the GELF output settings.
func GetGraylogConfig() GraylogConfig {
	var cfg GraylogConfig
	if err := viper.UnmarshalKey("graylog", &cfg); err != nil {
		return GraylogConfig{}
	}
	return cfg
}

// GetBridgeConfig returns the page websocket settings.
func GetBridgeConfig() BridgeConfig {
	return BridgeConfig{Listen: viper.GetString("bridge.listen")}
}

// GetAPIConfig returns the upload server settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}
