package status

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"marketscraper/internal/metrics"
)

// metricHistory keeps the most recent collector metric events. It is safe for
// concurrent use.
type metricHistory struct {
	mu    sync.RWMutex
	items []metrics.Event
	limit int
}

func newMetricHistory(limit int) *metricHistory {
	if limit <= 0 {
		limit = 200
	}
	return &metricHistory{limit: limit}
}

func (h *metricHistory) handle(e metrics.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append(h.items, e)
	if len(h.items) > h.limit {
		h.items = append([]metrics.Event(nil), h.items[len(h.items)-h.limit:]...)
	}
}

func (h *metricHistory) snapshot() []metrics.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]metrics.Event, len(h.items))
	copy(out, h.items)
	return out
}

type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// logHistory is a logrus hook retaining warnings and errors so that the
// status server can show recent upstream failures.
type logHistory struct {
	mu      sync.RWMutex
	items   []logRecord
	limit   int
	enabled atomic.Bool
}

func newLogHistory(limit int) *logHistory {
	if limit <= 0 {
		limit = 200
	}
	h := &logHistory{limit: limit}
	h.enabled.Store(true)
	return h
}

func (h *logHistory) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (h *logHistory) Fire(entry *logrus.Entry) error {
	if !h.enabled.Load() {
		return nil
	}

	record := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	if component, ok := entry.Data["component"].(string); ok {
		record.Component = component
	}
	if len(entry.Data) > 0 {
		record.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if k == "component" {
				continue
			}
			switch val := v.(type) {
			case error:
				record.Fields[k] = val.Error()
			case fmt.Stringer:
				record.Fields[k] = val.String()
			default:
				record.Fields[k] = val
			}
		}
	}

	h.mu.Lock()
	h.items = append(h.items, record)
	if len(h.items) > h.limit {
		h.items = append([]logRecord(nil), h.items[len(h.items)-h.limit:]...)
	}
	h.mu.Unlock()
	return nil
}

func (h *logHistory) snapshot() []logRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]logRecord, len(h.items))
	copy(out, h.items)
	return out
}

func (h *logHistory) close() {
	h.enabled.Store(false)
}
