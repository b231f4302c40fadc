package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"videoarchive/internal/model"

	"github.com/joho/godotenv"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Load loads configuration from environment variables. envFile, when not
// empty, names a file that must exist; otherwise a .env in the working
// directory is picked up when present. Invalid values are an error and
// abort before any owner runs.
func Load(envFile string) (*model.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else {
		godotenv.Load()
	}

	cfg := &model.Config{
		Server: model.ServerConfig{
			Port:    getEnvInt("SERVER_PORT", 8080),
			Host:    getEnvStr("SERVER_HOST", "0.0.0.0"),
			Timeout: getEnvInt("SERVER_TIMEOUT", 5),
		},
		Storage: model.StorageConfig{
			BaseDir: getEnvStr("STORAGE_BASE_DIR", "./archive"),
		},
		Source: model.SourceConfig{
			Dir:    getEnvStr("SOURCE_DIR", "./payloads"),
			Owners: parseOwnerList(getEnvStr("SOURCE_OWNERS", "")),
		},
		Download: model.DownloadConfig{
			BatchSize:         getEnvInt("DOWNLOAD_BATCH_SIZE", 2),
			BatchDelaySeconds: getEnvInt("DOWNLOAD_BATCH_DELAY_SECONDS", 1),
			OwnerDelaySeconds: getEnvInt("DOWNLOAD_OWNER_DELAY_SECONDS", 3),
			RequestTimeout:    getEnvInt("DOWNLOAD_REQUEST_TIMEOUT", 600),
			UserAgent:         getEnvStr("DOWNLOAD_USER_AGENT", defaultUserAgent),
			MaxScanDepth:      getEnvInt("DOWNLOAD_MAX_SCAN_DEPTH", 64),
		},
		Mirror: model.MirrorConfig{
			Enabled:      getEnvBool("MIRROR_ENABLED", false),
			Bucket:       getEnvStr("MIRROR_BUCKET", ""),
			Endpoint:     getEnvStr("MIRROR_ENDPOINT", ""),
			Region:       getEnvStr("MIRROR_REGION", "auto"),
			AccessKey:    getEnvStr("MIRROR_ACCESS_KEY_ID", ""),
			SecretKey:    getEnvStr("MIRROR_SECRET_ACCESS_KEY", ""),
			PathPrefix:   getEnvStr("MIRROR_PATH_PREFIX", "videos"),
			SourceTag:    getEnvStr("MIRROR_SOURCE_TAG", "videoarchive"),
			UsePathStyle: getEnvBool("MIRROR_USE_PATH_STYLE", true),
		},
		Logging: model.LoggingConfig{
			Level:         getEnvStr("LOG_LEVEL", "info"),
			Dir:           getEnvStr("LOG_DIR", ""),
			RetentionDays: getEnvInt("LOG_RETENTION_DAYS", 7),
		},
		Quota: model.QuotaConfig{
			Enabled:      getEnvBool("QUOTA_ENABLED", false),
			DailyLimitMB: getEnvInt64("QUOTA_DAILY_LIMIT_MB", 2048),
			ResetHour:    getEnvInt("QUOTA_RESET_HOUR", 0),
			ResetMinute:  getEnvInt("QUOTA_RESET_MINUTE", 0),
		},
		RateLimit: model.RateLimitConfig{
			Enabled:           getEnvBool("RATELIMIT_ENABLED", true),
			RequestsPerMinute: getEnvInt("RATELIMIT_REQUESTS_PER_MINUTE", 60),
			BurstSize:         getEnvInt("RATELIMIT_BURST_SIZE", 10),
			CleanupInterval:   getEnvInt("RATELIMIT_CLEANUP_INTERVAL", 300),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects configurations that would otherwise fail mid-run
func validate(cfg *model.Config) error {
	if cfg.Download.BatchSize < 1 {
		return fmt.Errorf("DOWNLOAD_BATCH_SIZE must be at least 1, got %d", cfg.Download.BatchSize)
	}
	if cfg.Download.BatchDelaySeconds < 0 || cfg.Download.OwnerDelaySeconds < 0 {
		return fmt.Errorf("download delays must not be negative")
	}
	if cfg.Download.RequestTimeout < 1 {
		return fmt.Errorf("DOWNLOAD_REQUEST_TIMEOUT must be at least 1 second, got %d", cfg.Download.RequestTimeout)
	}
	if cfg.Download.MaxScanDepth < 1 {
		return fmt.Errorf("DOWNLOAD_MAX_SCAN_DEPTH must be at least 1, got %d", cfg.Download.MaxScanDepth)
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", cfg.Server.Port)
	}
	if cfg.Mirror.Enabled {
		if cfg.Mirror.Bucket == "" {
			return fmt.Errorf("MIRROR_BUCKET is required when the mirror is enabled")
		}
		if cfg.Mirror.AccessKey == "" || cfg.Mirror.SecretKey == "" {
			return fmt.Errorf("MIRROR_ACCESS_KEY_ID and MIRROR_SECRET_ACCESS_KEY are required when the mirror is enabled")
		}
	}
	if cfg.Quota.ResetHour < 0 || cfg.Quota.ResetHour > 23 {
		return fmt.Errorf("QUOTA_RESET_HOUR out of range: %d", cfg.Quota.ResetHour)
	}
	if cfg.Quota.ResetMinute < 0 || cfg.Quota.ResetMinute > 59 {
		return fmt.Errorf("QUOTA_RESET_MINUTE out of range: %d", cfg.Quota.ResetMinute)
	}
	return nil
}

// parseOwnerList splits the comma-separated owner list, keeping order and
// dropping empty entries. Entries may carry an =<url> override; splitting
// them apart is the source registry's job.
func parseOwnerList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	var owners []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			owners = append(owners, p)
		}
	}
	return owners
}

func getEnvStr(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	valStr := getEnvStr(key, "")
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	valStr := getEnvStr(key, "")
	if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	valStr := strings.ToLower(getEnvStr(key, ""))
	if valStr == "true" || valStr == "1" || valStr == "yes" {
		return true
	}
	if valStr == "false" || valStr == "0" || valStr == "no" {
		return false
	}
	return defaultVal
}
