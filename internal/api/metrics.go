package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics снимает показатели процесса сервера
type ServerMetrics struct {
	startTime time.Time
	proc      *process.Process
}

// ProcessStats: срез показателей процесса для /api/stats
type ProcessStats struct {
	Uptime      string  `json:"uptime"`
	UptimeSec   int64   `json:"uptime_sec"`
	CPUPercent  float64 `json:"cpu_percent"`
	RSSMB       float64 `json:"rss_mb"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	Goroutines  int     `json:"goroutines"`
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	sm := &ServerMetrics{startTime: time.Now()}
	// без процесса (например, в песочнице) отдаём только runtime-показатели
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		sm.proc = proc
	}
	return sm
}

// Uptime возвращает время работы сервера
func (sm *ServerMetrics) Uptime() time.Duration { return time.Since(sm.startTime) }

// Snapshot собирает текущие показатели. Ошибки gopsutil не фатальны.
func (sm *ServerMetrics) Snapshot() ProcessStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	up := sm.Uptime()
	st := ProcessStats{
		Uptime:      formatUptime(up),
		UptimeSec:   int64(up.Seconds()),
		HeapAllocMB: float64(ms.HeapAlloc) / 1024 / 1024,
		NumGC:       ms.NumGC,
		Goroutines:  runtime.NumGoroutine(),
	}
	if sm.proc == nil {
		return st
	}
	if cpu, err := sm.proc.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if mem, err := sm.proc.MemoryInfo(); err == nil && mem != nil {
		st.RSSMB = float64(mem.RSS) / 1024 / 1024
	}
	return st
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}
