package health

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"time"

	"ventry-backend/internal/ledger"
	"ventry-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// DBPinger is optional for health check. If nil, database is reported as disconnected.
type DBPinger interface {
	Ping() error
}

// NodePinger reports ledger node status. If nil, the ledger is reported as disconnected.
type NodePinger interface {
	Status(ctx context.Context) (ledger.NodeStatus, error)
}

// Deps are the dependencies probed by CollectHealth. Any of them may be nil.
type Deps struct {
	Rdb    *redis.Client
	DB     DBPinger
	Ledger NodePinger
}

// CollectResult is the body of /health/json.
type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Memory        MemoryInfo `json:"memory"`
	Goroutines    int        `json:"goroutines"`
	Platform      string     `json:"platform"`
	GoVersion     string     `json:"goVersion"`
}

type MemoryInfo struct {
	AllocMB  int `json:"allocMb"`
	HeapInMB int `json:"heapInUseMb"`
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
	Status    string      `json:"status"`
	PingMs    interface{} `json:"pingMs"`
	LastRound *uint64     `json:"lastRound,omitempty"`
}

const (
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
	statusError        = "error"
)

// probe times fn and maps its error to a dependency status.
func probe(fn func() error) DepStatus {
	start := time.Now()
	if err := fn(); err != nil {
		return DepStatus{Status: statusError}
	}
	ms := time.Since(start).Milliseconds()
	return DepStatus{Status: statusConnected, PingMs: &ms}
}

// CollectHealth gathers request statistics from Redis and pings the database, Redis
// and the ledger node.
func CollectHealth(ctx context.Context, deps Deps) CollectResult {
	result := CollectResult{Dependencies: make(map[string]DepStatus)}

	dbDep := DepStatus{Status: statusDisconnected}
	if deps.DB != nil {
		dbDep = probe(deps.DB.Ping)
	}
	result.Dependencies["database"] = dbDep

	ledgerDep := DepStatus{Status: statusDisconnected}
	if deps.Ledger != nil {
		var round uint64
		ledgerDep = probe(func() error {
			st, err := deps.Ledger.Status(ctx)
			round = st.LastRound
			return err
		})
		if ledgerDep.Status == statusConnected {
			ledgerDep.LastRound = &round
		}
	}
	result.Dependencies["ledger"] = ledgerDep

	redisDep := DepStatus{Status: statusDisconnected}
	stats := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	startTimeMs := time.Now().UnixMilli()
	if deps.Rdb != nil {
		redisDep = probe(func() error { return deps.Rdb.Ping(ctx).Err() })
		if redisDep.Status == statusConnected {
			startTimeMs = readTraffic(ctx, deps.Rdb, &stats, startTimeMs)
		}
	}
	result.Dependencies["redis"] = redisDep
	result.Traffic = stats

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptimeSec := (time.Now().UnixMilli() - startTimeMs) / 1000
	if uptimeSec < 0 {
		uptimeSec = 0
	}
	result.Runtime = RuntimeInfo{
		UptimeSeconds: uptimeSec,
		Memory:        MemoryInfo{AllocMB: int(m.Alloc / 1024 / 1024), HeapInMB: int(m.HeapInuse / 1024 / 1024)},
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}

	result.Status = "issue"
	if dbDep.Status == statusConnected && redisDep.Status == statusConnected && ledgerDep.Status == statusConnected {
		result.Status = "ok"
	}
	return result
}

// readTraffic fills stats from the counters kept by middleware.HealthMarker and returns
// the recorded start time, initialising it when missing.
func readTraffic(ctx context.Context, rdb *redis.Client, stats *TrafficInfo, now int64) int64 {
	vals, _ := rdb.MGet(ctx,
		middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime,
		middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq,
	).Result()
	get := func(i int) string {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				return s
			}
		}
		return ""
	}

	startTimeMs := now
	if s := get(4); s != "" {
		if t, err := strconv.ParseInt(s, 10, 64); err == nil {
			startTimeMs = t
		}
	} else {
		rdb.Set(ctx, middleware.KeyStartTime, startTimeMs, 0)
	}

	stats.TotalRequests, _ = strconv.Atoi(get(0))
	stats.FailedCount, _ = strconv.Atoi(get(1))
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(get(2), 64)
	countSum, _ := strconv.Atoi(get(3))
	if countSum > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(countSum), 'f', 2, 64)
	}
	if s := get(5); s != "" {
		var lastReq map[string]interface{}
		_ = json.Unmarshal([]byte(s), &lastReq)
		stats.LastRequest = lastReq
	}
	return startTimeMs
}
