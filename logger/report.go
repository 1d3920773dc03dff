package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type counter struct {
	count int64
	bytes int64
}

var (
	warnsTotal  int64
	errorsTotal int64
	writes      sync.Map // collection -> *counter
	fallbacks   sync.Map // data kind -> *counter
	cycles      sync.Map // task -> *counter
	reportDisk  = "/"
)

func recordWarn(string) {
	atomic.AddInt64(&warnsTotal, 1)
}

func recordError(string) {
	atomic.AddInt64(&errorsTotal, 1)
}

// RecordWrite counts a successful document rewrite for the runtime report.
func RecordWrite(collection string, size int) {
	add(&writes, collection, int64(size))
}

// RecordFallback counts a synthetic substitution for the given data kind.
func RecordFallback(kind string) {
	add(&fallbacks, kind, 0)
}

// RecordCycle counts a completed collection cycle of a task.
func RecordCycle(task string) {
	add(&cycles, task, 0)
}

func add(m *sync.Map, name string, size int64) {
	v, _ := m.LoadOrStore(name, &counter{})
	c := v.(*counter)
	atomic.AddInt64(&c.count, 1)
	atomic.AddInt64(&c.bytes, size)
}

func snapshot(m *sync.Map) map[string]int64 {
	out := map[string]int64{}
	m.Range(func(k, v any) bool {
		out[k.(string)] = atomic.LoadInt64(&v.(*counter).count)
		return true
	})
	return out
}

// SetReportDisk changes the filesystem path whose usage the report samples.
func SetReportDisk(path string) {
	if path != "" {
		reportDisk = path
	}
}

// StartReport begins periodic logging of system usage and collector counters
// until ctx is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(log)
			}
		}
	}()
}

func logReport(log *Log) {
	fields := Fields{
		"warns":      atomic.LoadInt64(&warnsTotal),
		"errors":     atomic.LoadInt64(&errorsTotal),
		"writes":     snapshot(&writes),
		"fallbacks":  snapshot(&fallbacks),
		"cycles":     snapshot(&cycles),
		"goroutines": runtime.NumGoroutine(),
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		fields["cpu_percent"] = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields["memory_mb"] = int64(vm.Used) / 1024 / 1024
	}
	if du, err := disk.Usage(reportDisk); err == nil {
		fields["disk_used_percent"] = du.UsedPercent
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")
}
