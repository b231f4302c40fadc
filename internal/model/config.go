package model

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Source    SourceConfig
	Download  DownloadConfig
	Mirror    MirrorConfig
	Logging   LoggingConfig
	Quota     QuotaConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds archive server configuration
type ServerConfig struct {
	Port    int
	Host    string
	Timeout int // seconds, graceful shutdown drain
}

// StorageConfig holds local archive storage configuration
type StorageConfig struct {
	BaseDir string // root directory, one subdirectory per owner
}

// SourceConfig holds captured-payload source configuration
type SourceConfig struct {
	Dir    string   // directory holding <owner>.json capture files
	Owners []string // raw owner entries, "name" or "name=<url>"
}

// DownloadConfig holds batched download configuration
type DownloadConfig struct {
	BatchSize         int    // concurrent downloads per batch
	BatchDelaySeconds int    // pause after each settled batch
	OwnerDelaySeconds int    // pause between owners
	RequestTimeout    int    // seconds, whole-request HTTP timeout
	UserAgent         string // browser-like identification header
	MaxScanDepth      int    // payload traversal depth guard
}

// MirrorConfig holds remote object mirror configuration
type MirrorConfig struct {
	Enabled      bool
	Bucket       string
	Endpoint     string // custom S3-compatible endpoint, empty for AWS
	Region       string
	AccessKey    string
	SecretKey    string
	PathPrefix   string // remote key prefix ahead of <owner>/<filename>
	SourceTag    string // "source" metadata attached to uploads
	UsePathStyle bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level         string
	Dir           string // empty = stderr only
	RetentionDays int    // age limit for pruning log files
}

// QuotaConfig holds per-IP serving quota configuration
type QuotaConfig struct {
	Enabled      bool  // Enable quota limiting for streamed files
	DailyLimitMB int64 // Daily served MB per IP
	ResetHour    int   // Hour (0-23) to reset quota (midnight = 0)
	ResetMinute  int   // Minute (0-59) to reset quota
}

// RateLimitConfig holds rate limiting configuration for the archive server
type RateLimitConfig struct {
	Enabled           bool // Enable rate limiting
	RequestsPerMinute int  // Max requests per minute per IP
	BurstSize         int  // Extra headroom above the per-minute limit
	CleanupInterval   int  // Interval in seconds to clean up old entries
}
