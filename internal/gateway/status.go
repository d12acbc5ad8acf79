package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds int64           `json:"uptime_seconds"`
	Metrics       MetricsSnapshot `json:"metrics"`
	Users         int             `json:"users"`
	Model         string          `json:"model,omitempty"`
	Process       *ProcessStats   `json:"process,omitempty"`
}

// ProcessStats describes the webhook process itself.
type ProcessStats struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
}

// selfProcess returns a handle on the current process, or nil when the
// platform is not supported.
func selfProcess() *process.Process {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil
	}
	return p
}

// processStats samples g.proc. Fields that cannot be read stay zero.
func (g *Gateway) processStats(ctx context.Context) *ProcessStats {
	if g.proc == nil {
		return nil
	}
	stats := &ProcessStats{Goroutines: runtime.NumGoroutine()}
	if mem, err := g.proc.MemoryInfoWithContext(ctx); err == nil {
		stats.RSSBytes = mem.RSS
	}
	if cpu, err := g.proc.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	if n, err := g.proc.NumThreadsWithContext(ctx); err == nil {
		stats.Threads = n
	}
	return stats
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			UptimeSeconds: int64(time.Since(g.startedAt) / time.Second),
			Metrics:       g.metrics.Snapshot(),
			Process:       g.processStats(r.Context()),
		}

		if g.store != nil {
			if n, err := g.store.Len(); err == nil {
				resp.Users = n
			}
		}
		if g.provider != nil {
			resp.Model = g.provider.ModelName()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
