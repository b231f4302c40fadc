package logger

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinLogger returns a middleware for logging HTTP requests
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// Process request
		c.Next()

		// Log request details
		duration := time.Since(startTime)
		statusCode := c.Writer.Status()

		Logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.RequestURI),
			zap.String("ip", c.ClientIP()),
			zap.Int("status", statusCode),
			zap.Duration("duration", duration),
			zap.Int("body_size", c.Writer.Size()),
		)
	}
}

// LogError logs an error with context
func LogError(msg string, err error, fields ...zap.Field) {
	Logger.Error(msg, append(fields, zap.Error(err))...)
}

// LogWarn logs a warning
func LogWarn(msg string, fields ...zap.Field) {
	Logger.Warn(msg, fields...)
}

// LogInfo logs an info message
func LogInfo(msg string, fields ...zap.Field) {
	Logger.Info(msg, fields...)
}

// LogDebug logs a debug message
func LogDebug(msg string, fields ...zap.Field) {
	Logger.Debug(msg, fields...)
}

// CleanupLogs removes log files older than maxAge from logDir. Runs once
// at startup; the archive itself is never touched by any cleanup.
func CleanupLogs(logDir string, maxAge time.Duration) {
	if logDir == "" {
		return
	}

	entries, err := os.ReadDir(logDir)
	if err != nil {
		LogWarn("Log cleanup skipped", zap.String("dir", logDir), zap.Error(err))
		return
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(logDir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		LogInfo("Old log files removed", zap.String("dir", logDir), zap.Int("count", removed))
	}
}
