package metrics

import (
	"sync"
	"time"

	"marketscraper/logger"
)

// CollectorMetric identifies a measurement emitted by a collection task.
type CollectorMetric string

const (
	// MetricRecordsWritten counts records appended to a log document.
	MetricRecordsWritten CollectorMetric = "records_written"
	// MetricFallbackUsed counts synthetic substitutions for live market data.
	MetricFallbackUsed CollectorMetric = "fallback_used"
	// MetricItemFailures counts per-symbol or per-kind failures inside a cycle.
	MetricItemFailures CollectorMetric = "item_failures"
	// MetricCycleDuration is the wall time of one task cycle.
	MetricCycleDuration CollectorMetric = "cycle_duration_ms"
)

// Event is one collector measurement. Collection, Symbol and Kind are empty
// when they do not apply.
type Event struct {
	Timestamp  time.Time       `json:"timestamp"`
	Task       string          `json:"task"`
	Metric     CollectorMetric `json:"metric"`
	Value      float64         `json:"value"`
	Collection string          `json:"collection,omitempty"`
	Symbol     string          `json:"symbol,omitempty"`
	Kind       string          `json:"kind,omitempty"`
}

// Gauge reports whether the event is a point-in-time value rather than an
// increment.
func (e Event) Gauge() bool { return e.Metric == MetricCycleDuration }

func (e Event) fields() logger.Fields {
	metricType := "counter"
	if e.Gauge() {
		metricType = "gauge"
	}
	fields := logger.Fields{
		"task":        e.Task,
		"metric":      string(e.Metric),
		"metric_type": metricType,
		"value":       e.Value,
	}
	if e.Collection != "" {
		fields["collection"] = e.Collection
	}
	if e.Symbol != "" {
		fields["symbol"] = e.Symbol
	}
	if e.Kind != "" {
		fields["kind"] = e.Kind
	}
	return fields
}

// SubscriptionID identifies a registered event consumer. Zero is never issued.
type SubscriptionID uint64

type subscribers struct {
	mu     sync.RWMutex
	nextID SubscriptionID
	fns    map[SubscriptionID]func(Event)
}

var subs = &subscribers{fns: make(map[SubscriptionID]func(Event))}

// Subscribe delivers every subsequent event to fn, synchronously on the
// emitting goroutine.
func Subscribe(fn func(Event)) SubscriptionID {
	if fn == nil {
		return 0
	}
	subs.mu.Lock()
	defer subs.mu.Unlock()
	subs.nextID++
	subs.fns[subs.nextID] = fn
	return subs.nextID
}

func Unsubscribe(id SubscriptionID) {
	if id == 0 {
		return
	}
	subs.mu.Lock()
	delete(subs.fns, id)
	subs.mu.Unlock()
}

func (s *subscribers) deliver(e Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Emit logs e at debug level, hands it to subscribers and publishes it to
// CloudWatch when a client is configured. Events without a task or metric
// are dropped.
func Emit(log *logger.Log, e Event) {
	if e.Task == "" || e.Metric == "" {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = timeNow()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	log.WithComponent("collector_metrics").WithFields(e.fields()).Debug("metric")

	subs.deliver(e)
	publishEvent(e)
}

func RecordsWritten(log *logger.Log, task, collection, symbol, kind string, n int) {
	Emit(log, Event{Task: task, Metric: MetricRecordsWritten, Value: float64(n), Collection: collection, Symbol: symbol, Kind: kind})
}

func FallbackUsed(log *logger.Log, task, symbol, kind string) {
	Emit(log, Event{Task: task, Metric: MetricFallbackUsed, Value: 1, Symbol: symbol, Kind: kind})
}

func ItemFailure(log *logger.Log, task, symbol, kind string) {
	Emit(log, Event{Task: task, Metric: MetricItemFailures, Value: 1, Symbol: symbol, Kind: kind})
}

func CycleDuration(log *logger.Log, task string, d time.Duration) {
	Emit(log, Event{Task: task, Metric: MetricCycleDuration, Value: float64(d.Milliseconds())})
}
