package service

import (
	"math"
	"sync"
	"time"

	"videoarchive/internal/model"
	"videoarchive/pkg/logger"

	"go.uber.org/zap"
)

// QuotaEntry tracks served volume per IP
type QuotaEntry struct {
	IP         string
	UsedBytes  int64
	ResetAt    time.Time
	LastUpdate time.Time
}

// QuotaService caps how much archived video each client IP may stream per
// day. Usage is tracked in bytes so small files still count.
type QuotaService struct {
	cfg      model.QuotaConfig
	quotas   map[string]*QuotaEntry
	mu       sync.RWMutex
	quitChan chan bool
}

// NewQuotaService creates a new quota service
func NewQuotaService(cfg model.QuotaConfig) *QuotaService {
	service := &QuotaService{
		cfg:      cfg,
		quotas:   make(map[string]*QuotaEntry),
		quitChan: make(chan bool),
	}

	if cfg.Enabled {
		go service.resetRoutine()
	}

	return service
}

func (qs *QuotaService) limitBytes() int64 {
	return qs.cfg.DailyLimitMB * 1024 * 1024
}

// CanServe checks if an IP has quota left for a file of the given size.
// It also returns the remaining bytes before the request.
func (qs *QuotaService) CanServe(ip string, sizeBytes int64) (bool, int64) {
	if !qs.cfg.Enabled {
		return true, qs.limitBytes()
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()

	now := time.Now()
	entry, exists := qs.quotas[ip]
	if !exists {
		entry = &QuotaEntry{
			IP:         ip,
			ResetAt:    qs.calculateResetTime(),
			LastUpdate: now,
		}
		qs.quotas[ip] = entry
		logger.Logger.Debug("New quota entry created",
			zap.String("ip", ip),
			zap.Time("reset_at", entry.ResetAt))
	}

	if now.After(entry.ResetAt) {
		entry.UsedBytes = 0
		entry.ResetAt = qs.calculateResetTime()
		entry.LastUpdate = now
		logger.Logger.Info("Quota reset for IP",
			zap.String("ip", ip),
			zap.Time("new_reset_at", entry.ResetAt))
	}

	remaining := qs.limitBytes() - entry.UsedBytes
	if remaining <= 0 {
		logger.Logger.Warn("Quota exhausted",
			zap.String("ip", ip),
			zap.Int64("limit_mb", qs.cfg.DailyLimitMB))
		return false, 0
	}

	if sizeBytes > remaining {
		logger.Logger.Warn("Quota insufficient",
			zap.String("ip", ip),
			zap.Int64("requested_bytes", sizeBytes),
			zap.Int64("remaining_bytes", remaining))
		return false, remaining
	}

	return true, remaining
}

// AddUsage records served bytes for an IP
func (qs *QuotaService) AddUsage(ip string, sizeBytes int64) {
	if !qs.cfg.Enabled {
		return
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()

	entry, exists := qs.quotas[ip]
	if !exists {
		qs.quotas[ip] = &QuotaEntry{
			IP:         ip,
			UsedBytes:  sizeBytes,
			ResetAt:    qs.calculateResetTime(),
			LastUpdate: time.Now(),
		}
		return
	}

	entry.UsedBytes += sizeBytes
	entry.LastUpdate = time.Now()

	logger.Logger.Debug("Quota usage updated",
		zap.String("ip", ip),
		zap.Int64("used_bytes", entry.UsedBytes),
		zap.Int64("limit_mb", qs.cfg.DailyLimitMB))
}

// GetQuotaInfo returns current quota info for an IP
func (qs *QuotaService) GetQuotaInfo(ip string) map[string]interface{} {
	if !qs.cfg.Enabled {
		return map[string]interface{}{
			"enabled": false,
		}
	}

	qs.mu.RLock()
	defer qs.mu.RUnlock()

	entry, exists := qs.quotas[ip]
	if !exists || time.Now().After(entry.ResetAt) {
		return map[string]interface{}{
			"enabled":      true,
			"used_mb":      0.0,
			"limit_mb":     qs.cfg.DailyLimitMB,
			"remaining_mb": float64(qs.cfg.DailyLimitMB),
			"reset_at":     qs.calculateResetTime(),
		}
	}

	remaining := qs.limitBytes() - entry.UsedBytes
	if remaining < 0 {
		remaining = 0
	}

	return map[string]interface{}{
		"enabled":      true,
		"used_mb":      roundMB(entry.UsedBytes),
		"limit_mb":     qs.cfg.DailyLimitMB,
		"remaining_mb": roundMB(remaining),
		"reset_at":     entry.ResetAt,
	}
}

func roundMB(bytes int64) float64 {
	return math.Round(float64(bytes)/(1024*1024)*100) / 100
}

// calculateResetTime calculates the next reset time based on config
func (qs *QuotaService) calculateResetTime() time.Time {
	now := time.Now()
	resetTime := time.Date(now.Year(), now.Month(), now.Day(), qs.cfg.ResetHour, qs.cfg.ResetMinute, 0, 0, now.Location())

	// If reset time has already passed today, set for tomorrow
	if resetTime.Before(now) {
		resetTime = resetTime.AddDate(0, 0, 1)
	}

	return resetTime
}

// resetRoutine periodically checks and resets quotas
func (qs *QuotaService) resetRoutine() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-qs.quitChan:
			logger.Logger.Info("Quota service stopped")
			return
		case <-ticker.C:
			qs.checkAndResetQuotas()
		}
	}
}

// checkAndResetQuotas resets every entry whose window has passed
func (qs *QuotaService) checkAndResetQuotas() {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	now := time.Now()
	resetCount := 0

	for _, entry := range qs.quotas {
		if now.After(entry.ResetAt) {
			entry.UsedBytes = 0
			entry.ResetAt = qs.calculateResetTime()
			entry.LastUpdate = now
			resetCount++
		}
	}

	if resetCount > 0 {
		logger.Logger.Info("Quota reset completed", zap.Int("entries_reset", resetCount))
	}
}

// Stop stops the quota service
func (qs *QuotaService) Stop() {
	if qs.cfg.Enabled {
		qs.quitChan <- true
	}
}
