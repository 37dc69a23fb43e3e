package health

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"strconv"
	"time"

	"asset-ledger/internal/domain"
	"asset-ledger/internal/middleware"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Pinger is an optional dependency probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Report is the /health/json payload.
type Report struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
	LastSync     *domain.SyncRun      `json:"lastSync,omitempty"`
}

type RuntimeInfo struct {
	UptimeSeconds int64  `json:"uptimeSeconds"`
	HeapMB        int    `json:"heapMb"`
	Goroutines    int    `json:"goroutines"`
	Platform      string `json:"platform"`
	GoVersion     string `json:"goVersion"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status string `json:"status"`
	PingMs *int64 `json:"pingMs"`
}

// Checker collects service health. Every field is optional; a nil DB or Redis is reported
// as disconnected.
type Checker struct {
	DB      *gorm.DB
	Rdb     *redis.Client
	Feeds   map[string]Pinger
	Started time.Time
}

// Collect gathers dependency status, request statistics and the latest sync run.
func (h *Checker) Collect(ctx context.Context) Report {
	r := Report{Dependencies: make(map[string]DepStatus)}

	dbStatus := "disconnected"
	if h.DB != nil {
		status, ms := ping(func() error {
			sqlDB, err := h.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
		dbStatus = status
		r.Dependencies["database"] = DepStatus{Status: status, PingMs: ms}
		if status == "connected" {
			var run domain.SyncRun
			if err := h.DB.WithContext(ctx).Order("started_at DESC").Limit(1).Find(&run).Error; err == nil && run.Received > 0 {
				r.LastSync = &run
			}
		}
	} else {
		r.Dependencies["database"] = DepStatus{Status: dbStatus}
	}

	started := h.Started
	r.Traffic = TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	if h.Rdb != nil {
		status, ms := ping(func() error { return h.Rdb.Ping(ctx).Err() })
		r.Dependencies["redis"] = DepStatus{Status: status, PingMs: ms}
		if status == "connected" {
			r.Traffic, started = traffic(ctx, h.Rdb, started)
		}
	} else {
		r.Dependencies["redis"] = DepStatus{Status: "disconnected"}
	}

	for name, p := range h.Feeds {
		status, ms := ping(func() error { return p.Ping(ctx) })
		if status == "connected" {
			status = "reachable"
		} else {
			status = "unreachable"
		}
		r.Dependencies[name] = DepStatus{Status: status, PingMs: ms}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := int64(0)
	if !started.IsZero() {
		uptime = int64(time.Since(started).Seconds())
	}
	r.Runtime = RuntimeInfo{
		UptimeSeconds: uptime,
		HeapMB:        int(m.HeapInuse / 1024 / 1024),
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}

	// Redis only carries the price cache and stats, so the service is healthy without it.
	if dbStatus == "connected" {
		r.Status = "ok"
	} else {
		r.Status = "issue"
	}
	return r
}

func ping(fn func() error) (string, *int64) {
	start := time.Now()
	if err := fn(); err != nil {
		return "error", nil
	}
	ms := time.Since(start).Milliseconds()
	return "connected", &ms
}

func traffic(ctx context.Context, rdb *redis.Client, started time.Time) (TrafficInfo, time.Time) {
	stats := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	vals, err := rdb.MGet(ctx, middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime,
		middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq).Result()
	if err != nil {
		return stats, started
	}
	str := func(i int) string {
		s, _ := vals[i].(string)
		return s
	}

	if t, err := strconv.ParseInt(str(4), 10, 64); err == nil {
		started = time.UnixMilli(t)
	} else if !started.IsZero() {
		rdb.SetNX(ctx, middleware.KeyStartTime, started.UnixMilli(), 0)
	}

	stats.TotalRequests, _ = strconv.Atoi(str(0))
	stats.FailedCount, _ = strconv.Atoi(str(1))
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(str(2), 64)
	countSum, _ := strconv.Atoi(str(3))
	if countSum > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(countSum), 'f', 2, 64)
	}
	if s := str(5); s != "" {
		var last map[string]interface{}
		if json.Unmarshal([]byte(s), &last) == nil {
			stats.LastRequest = last
		}
	}
	return stats, started
}

// ResetStats clears the request statistics and restarts the uptime clock.
func ResetStats(ctx context.Context, rdb *redis.Client, now time.Time) error {
	if rdb == nil {
		return errors.New("redis is not configured")
	}
	keys := []string{middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime,
		middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq, middleware.KeyErrorLog}
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	return rdb.Set(ctx, middleware.KeyStartTime, strconv.FormatInt(now.UnixMilli(), 10), 0).Err()
}
