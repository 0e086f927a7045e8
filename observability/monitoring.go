// Package observability samples runtime health of the gateway process.
package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats is a point-in-time snapshot of the gateway, served by the health
// endpoint and logged periodically by the Monitor worker.
type Stats struct {
	Sessions          int     `json:"sessions"`
	Rooms             int     `json:"rooms"`
	MessagesDelivered uint64  `json:"messages_delivered"`
	EventsDropped     uint64  `json:"events_dropped"`
	Goroutines        int     `json:"goroutines"`
	AllocMemMb        uint64  `json:"alloc_mem_mb"`
	NumGC             uint32  `json:"num_gc"`
	CPUPercent        float64 `json:"cpu_percent"`
	RAMPercent        float32 `json:"ram_percent"`
}

// Snapshot reports the live connection counts. The registry implements it.
type Snapshot interface {
	SessionCount() int
	RoomCount() int
}

// Monitor is a supervised worker. On every tick it samples the gateway
// process (via gopsutil) and the Go runtime, merges the chat counters, and
// logs the result at debug level.
type Monitor struct {
	mu             sync.RWMutex
	log            *slog.Logger
	snapshot       Snapshot
	metricInterval time.Duration
	latest         Stats

	messagesDelivered uint64
	eventsDropped     uint64
}

func NewMonitor(log *slog.Logger, snapshot Snapshot, metricInterval time.Duration) *Monitor {
	return &Monitor{
		log:            log,
		snapshot:       snapshot,
		metricInterval: metricInterval,
	}
}

func (m *Monitor) IncrMessagesDelivered() {
	atomic.AddUint64(&m.messagesDelivered, 1)
}

func (m *Monitor) IncrEventsDropped() {
	atomic.AddUint64(&m.eventsDropped, 1)
}

func (m *Monitor) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(m.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("Context done, stopping monitoring")
			return nil
		case <-ticker.C:
			m.sample(proc)
		}
	}
}

func (m *Monitor) sample(proc *process.Process) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := Stats{
		Sessions:          m.snapshot.SessionCount(),
		Rooms:             m.snapshot.RoomCount(),
		MessagesDelivered: atomic.LoadUint64(&m.messagesDelivered),
		EventsDropped:     atomic.LoadUint64(&m.eventsDropped),
		Goroutines:        runtime.NumGoroutine(),
		AllocMemMb:        mem.Alloc / 1024 / 1024,
		NumGC:             mem.NumGC,
	}

	if cpu, err := proc.CPUPercent(); err != nil {
		m.log.Error("Error while finding process cpu usage", "err", err)
	} else {
		stats.CPUPercent = cpu
	}
	if ram, err := proc.MemoryPercent(); err != nil {
		m.log.Error("Error while finding process ram usage", "err", err)
	} else {
		stats.RAMPercent = ram
	}

	m.mu.Lock()
	m.latest = stats
	m.mu.Unlock()

	m.log.Debug("Gateway stats",
		"sessions", stats.Sessions,
		"rooms", stats.Rooms,
		"messages_delivered", stats.MessagesDelivered,
		"events_dropped", stats.EventsDropped,
		"goroutines", stats.Goroutines,
		"mem_mb", stats.AllocMemMb,
	)
}

func (m *Monitor) GetLatest() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}
