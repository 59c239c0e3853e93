package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// scheduledJobs are reported with their next run in the status response
var scheduledJobs = []string{"price_refresh", "eod_snapshot", "backup", "db_maintenance", "observation_cleanup"}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string               `json:"status"`
	Version       string               `json:"version"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	Host          HostStats            `json:"host"`
	Runtime       RuntimeStats         `json:"runtime"`
	Database      *database.Stats      `json:"database,omitempty"`
	NextRuns      map[string]time.Time `json:"next_runs"`
}

// HostStats holds machine resource usage
type HostStats struct {
	Hostname        string  `json:"hostname"`
	Platform        string  `json:"platform"`
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryPercent   float64 `json:"memory_percent"`
	DiskPercent     float64 `json:"disk_percent"`
	DiskFreeBytes   uint64  `json:"disk_free_bytes"`
	HostUptimeHours float64 `json:"host_uptime_hours"`
}

// RuntimeStats holds Go runtime figures
type RuntimeStats struct {
	Goroutines   int    `json:"goroutines"`
	HeapAllocMB  uint64 `json:"heap_alloc_mb"`
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	GOMAXPROCS   int    `json:"gomaxprocs"`
	NumGC        uint32 `json:"num_gc"`
}

// SystemHandlers serves host and process status
type SystemHandlers struct {
	db          *database.DB
	scheduler   *scheduler.Scheduler
	dataDir     string
	version     string
	startupTime time.Time
	log         zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(db *database.DB, sched *scheduler.Scheduler, dataDir, version string, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		db:          db,
		scheduler:   sched,
		dataDir:     dataDir,
		version:     version,
		startupTime: time.Now(),
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// HandleSystemStatus returns host, runtime and job status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	response := SystemStatusResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		Host:          h.hostStats(r),
		Runtime:       runtimeStats(),
		NextRuns:      make(map[string]time.Time),
	}

	if h.db != nil {
		stats, err := h.db.GetStats(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to read database stats")
			response.Status = "degraded"
		} else {
			response.Database = stats
		}
	}

	if h.scheduler != nil {
		for _, name := range scheduledJobs {
			if next := h.scheduler.Next(name); !next.IsZero() {
				response.NextRuns[name] = next
			}
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats returns SQLite file and page statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "database not available"})
		return
	}

	stats, err := h.db.GetStats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read database stats")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// hostStats samples CPU over a short window so the call stays fast.
// Any probe that fails is reported as zero.
func (h *SystemHandlers) hostStats(r *http.Request) HostStats {
	ctx := r.Context()
	var stats HostStats

	if cpuPercent, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	if memStat, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		stats.MemoryPercent = memStat.UsedPercent
	}

	if h.dataDir != "" {
		if usage, err := disk.UsageWithContext(ctx, h.dataDir); err != nil {
			h.log.Warn().Err(err).Msg("Failed to get disk usage")
		} else {
			stats.DiskPercent = usage.UsedPercent
			stats.DiskFreeBytes = usage.Free
		}
	}

	if info, err := host.InfoWithContext(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get host info")
	} else {
		stats.Hostname = info.Hostname
		stats.Platform = info.Platform
		stats.HostUptimeHours = float64(info.Uptime) / 3600
	}

	return stats
}

func runtimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeStats{
		Goroutines:   runtime.NumGoroutine(),
		HeapAllocMB:  m.HeapAlloc / 1024 / 1024,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		GOMAXPROCS:   runtime.GOMAXPROCS(0),
		NumGC:        m.NumGC,
	}
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
