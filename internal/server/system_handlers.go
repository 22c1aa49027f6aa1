package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/governor/internal/database"
	"github.com/aristath/governor/internal/di"
	"github.com/aristath/governor/internal/events"
	"github.com/aristath/governor/internal/scheduler"
)

// SystemHandlers serves process and database status and manual job triggers
type SystemHandlers struct {
	databases map[string]*database.DB
	bus       *events.Bus
	jobs      map[string]scheduler.Job
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers. jobs may be nil.
func NewSystemHandlers(log zerolog.Logger, container *di.Container, jobs *di.JobInstances) *SystemHandlers {
	h := &SystemHandlers{
		databases: container.Databases(),
		bus:       container.EventBus,
		jobs:      make(map[string]scheduler.Job),
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
	if jobs != nil {
		for _, job := range []scheduler.Job{jobs.WeeklyCycle, jobs.DailyMaintenance, jobs.WeeklyMaintenance} {
			h.RegisterJob(job)
		}
	}
	return h
}

// RegisterJob makes job triggerable through POST /api/system/jobs/{name}
func (h *SystemHandlers) RegisterJob(job scheduler.Job) {
	h.jobs[job.Name()] = job
}

// SystemStatusResponse represents the process status
type SystemStatusResponse struct {
	Status        string         `json:"status"` // "healthy" or "unhealthy"
	UptimeSeconds int64          `json:"uptime_seconds"`
	Goroutines    int            `json:"goroutines"`
	CPUPercent    float64        `json:"cpu_percent"`
	MemoryPercent float64        `json:"memory_percent"`
	Databases     map[string]any `json:"databases"`
	Subscribers   map[string]int `json:"event_subscribers"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count"`
	Freelist  int64   `json:"freelist_count"`
}

// HandleSystemStatus returns process health, resource usage and database health
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Databases:     make(map[string]any, len(h.databases)),
		Subscribers:   make(map[string]int, len(events.AllEventTypes)),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for name, db := range h.databases {
		if err := db.HealthCheck(ctx); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Database health check failed")
			response.Status = "unhealthy"
			response.Databases[name] = err.Error()
			continue
		}
		response.Databases[name] = "ok"
	}

	if h.bus != nil {
		for _, eventType := range events.AllEventTypes {
			response.Subscribers[string(eventType)] = h.bus.SubscriberCount(eventType)
		}
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, response)
}

// HandleDatabaseStats returns database statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	dbs := make([]DBInfo, 0, len(names))
	totalSizeMB := 0.0
	for _, name := range names {
		db := h.databases[name]
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to get database stats")
			continue
		}
		sizeMB := float64(stats.SizeBytes) / 1024 / 1024
		totalSizeMB += sizeMB
		dbs = append(dbs, DBInfo{
			Name:      name,
			Path:      db.Path(),
			SizeMB:    sizeMB,
			WALSizeMB: float64(stats.WALSizeBytes) / 1024 / 1024,
			PageCount: stats.PageCount,
			Freelist:  stats.FreelistCount,
		})
	}

	h.writeJSON(w, http.StatusOK, DatabaseStatsResponse{
		Databases:   dbs,
		TotalSizeMB: totalSizeMB,
		LastChecked: time.Now().Format(time.RFC3339),
	})
}

// HandleTriggerJob runs a registered job in the background
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job run triggered")

	go func() {
		if err := job.Run(); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": name + " triggered",
	})
}

// getSystemStats calculates CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
