package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// QuotaConfig defines the monthly page quota defaults and the reset loop.
type QuotaConfig struct {
    RedisURL         string
    DefaultPageLimit int
    ResetPeriod      time.Duration
}

// ExtractorConfig defines document handling and artifact output behavior.
type ExtractorConfig struct {
    UploadDir     string
    OutputDir     string
    SnapshotDPI   int
    SnapshotJPEGQ int
    MaxConcurrent int
    S3Bucket      string
    UploadResults bool
}

// ProviderModels defines the model pair for a provider.
type ProviderModels struct {
    Primary   string
    Secondary string
}

// AIConfig defines engines and models for table Q&A.
type AIConfig struct {
    PrimaryEngine   string // "openai"|"anthropic"
    SecondaryEngine string // "anthropic"|"openai"
    RequestTimeout  time.Duration
    OpenAI          ProviderModels
    Anthropic       ProviderModels
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
    Port            string
    ShutdownTimeout time.Duration
}

// Config is the top-level configuration.
type Config struct {
    Logging   LoggingConfig
    Axiom     AxiomConfig
    Quota     QuotaConfig
    Extractor ExtractorConfig
    AI        AIConfig
    Server    ServerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/tableminer.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_tableminer",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    // Quota defaults: 30 pages matches the default account tier; the
    // reset sweep fires every 7 days of process uptime.
    cfg.Quota = QuotaConfig{
        RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
        DefaultPageLimit: parseInt(getEnv("DEFAULT_MONTHLY_PAGE_LIMIT", "30"), 30),
        ResetPeriod:      parseDuration(getEnv("QUOTA_RESET_PERIOD", "168h"), 168*time.Hour),
    }

    // Extractor defaults
    cfg.Extractor = ExtractorConfig{
        UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
        OutputDir:     getEnv("OUTPUT_DIR", "outputs"),
        SnapshotDPI:   parseInt(getEnv("SNAPSHOT_DPI", "150"), 150),
        SnapshotJPEGQ: parseInt(getEnv("SNAPSHOT_JPEG_QUALITY", "85"), 85),
        MaxConcurrent: parseInt(getEnv("MAX_CONCURRENT_RUNS", "4"), 4),
        S3Bucket:      getEnv("AWS_S3_BUCKET", ""),
        UploadResults: parseBool(getEnv("UPLOAD_RESULTS_S3", "0")),
    }

    // AI defaults (table Q&A)
    cfg.AI = AIConfig{
        PrimaryEngine:   getEnv("PRIMARY_ENGINE", "openai"),
        SecondaryEngine: getEnv("SECONDARY_ENGINE", "anthropic"),
        RequestTimeout:  parseDuration(getEnv("AI_REQUEST_TIMEOUT", "60s"), 60*time.Second),
        OpenAI: ProviderModels{
            Primary:   getEnv("OPENAI_PRIMARY_MODEL", "gpt-4.1"),
            Secondary: getEnv("OPENAI_SECONDARY_MODEL", "gpt-4o"),
        },
        Anthropic: ProviderModels{
            Primary:   getEnv("ANTHROPIC_PRIMARY_MODEL", "claude-3-5-sonnet"),
            Secondary: getEnv("ANTHROPIC_SECONDARY_MODEL", "claude-3-opus"),
        },
    }

    // Server defaults
    cfg.Server = ServerConfig{
        Port:            getEnv("PORT", "8080"),
        ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
