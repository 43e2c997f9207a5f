package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is the file Load looks for in the config directory.
const ConfigFileName = "ghost.cfg.json"

// RecorderConfig holds recording session settings
type RecorderConfig struct {
	MinSampleInterval time.Duration
	AutoPersonalBest  bool
	Compress          bool
	GameVersion       string
}

// CompressionConfig holds frame thinning thresholds
type CompressionConfig struct {
	DistanceThreshold float64
	AngleThreshold    float64
}

// PlaybackConfig holds playback and tick settings
type PlaybackConfig struct {
	MaxGhostsOnTrack int
	TickInterval     time.Duration
	DefaultLooping   bool
}

// StorageConfig holds record store settings
type StorageConfig struct {
	Dir string
}

// MemoryConfig holds in-memory catalog settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds in-memory SQLite catalog settings
type SQLiteConfig struct {
	DumpInterval time.Duration
	DumpPath     string
}

// PostgresConfig holds Postgres catalog connection settings
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DSN returns the connection string for the gorm postgres driver.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// CatalogConfig selects and configures the catalog mirror
type CatalogConfig struct {
	Type     string // none, memory, sqlite, postgres
	Memory   MemoryConfig
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// RemoteConfig holds leaderboard service settings
type RemoteConfig struct {
	Enabled   bool
	ServerURL string
	APIKey    string
	Timeout   time.Duration
}

// LiveFeedConfig holds websocket live sample feed settings
type LiveFeedConfig struct {
	Enabled   bool
	URL       string
	QueueSize int
}

// InfluxConfig holds InfluxDB metrics settings
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// GraylogConfig holds GELF log sink settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers every default value. Load calls it; callers that run
// without a config file can call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./ghostlogs")

	viper.SetDefault("recorder.minSampleInterval", "33ms")
	viper.SetDefault("recorder.autoPersonalBest", true)
	viper.SetDefault("recorder.compress", true)
	viper.SetDefault("recorder.gameVersion", "1.0.0")

	viper.SetDefault("compression.distanceThreshold", 1.0)
	viper.SetDefault("compression.angleThreshold", 5.0)

	viper.SetDefault("playback.maxGhostsOnTrack", 3)
	viper.SetDefault("playback.tickInterval", "16ms")
	viper.SetDefault("playback.defaultLooping", false)

	viper.SetDefault("storage.dir", "./ghosts")

	viper.SetDefault("catalog.type", "none")
	viper.SetDefault("catalog.memory.outputDir", "./catalog")
	viper.SetDefault("catalog.memory.compressOutput", true)
	viper.SetDefault("catalog.sqlite.dumpInterval", "3m")
	viper.SetDefault("catalog.sqlite.dumpPath", "./ghost_catalog.db")
	viper.SetDefault("catalog.postgres.host", "localhost")
	viper.SetDefault("catalog.postgres.port", "5432")
	viper.SetDefault("catalog.postgres.username", "postgres")
	viper.SetDefault("catalog.postgres.password", "postgres")
	viper.SetDefault("catalog.postgres.database", "ghosts")

	viper.SetDefault("remote.enabled", false)
	viper.SetDefault("remote.serverUrl", "http://localhost:8080/api")
	viper.SetDefault("remote.apiKey", "")
	viper.SetDefault("remote.timeout", "30s")

	viper.SetDefault("liveFeed.enabled", false)
	viper.SetDefault("liveFeed.url", "ws://localhost:8090/live")
	viper.SetDefault("liveFeed.queueSize", 1024)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "ghost-metrics")
	viper.SetDefault("influx.bucket", "ghosts")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "ghost-replay")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
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

func GetRecorderConfig() RecorderConfig {
	return RecorderConfig{
		MinSampleInterval: viper.GetDuration("recorder.minSampleInterval"),
		AutoPersonalBest:  viper.GetBool("recorder.autoPersonalBest"),
		Compress:          viper.GetBool("recorder.compress"),
		GameVersion:       viper.GetString("recorder.gameVersion"),
	}
}

func GetCompressionConfig() CompressionConfig {
	return CompressionConfig{
		DistanceThreshold: viper.GetFloat64("compression.distanceThreshold"),
		AngleThreshold:    viper.GetFloat64("compression.angleThreshold"),
	}
}

func GetPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		MaxGhostsOnTrack: viper.GetInt("playback.maxGhostsOnTrack"),
		TickInterval:     viper.GetDuration("playback.tickInterval"),
		DefaultLooping:   viper.GetBool("playback.defaultLooping"),
	}
}

func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Dir: viper.GetString("storage.dir"),
	}
}

func GetCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Type: viper.GetString("catalog.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("catalog.memory.outputDir"),
			CompressOutput: viper.GetBool("catalog.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("catalog.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("catalog.sqlite.dumpPath"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("catalog.postgres.host"),
			Port:     viper.GetString("catalog.postgres.port"),
			Username: viper.GetString("catalog.postgres.username"),
			Password: viper.GetString("catalog.postgres.password"),
			Database: viper.GetString("catalog.postgres.database"),
		},
	}
}

func GetRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Enabled:   viper.GetBool("remote.enabled"),
		ServerURL: viper.GetString("remote.serverUrl"),
		APIKey:    viper.GetString("remote.apiKey"),
		Timeout:   viper.GetDuration("remote.timeout"),
	}
}

func GetLiveFeedConfig() LiveFeedConfig {
	return LiveFeedConfig{
		Enabled:   viper.GetBool("liveFeed.enabled"),
		URL:       viper.GetString("liveFeed.url"),
		QueueSize: viper.GetInt("liveFeed.queueSize"),
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
