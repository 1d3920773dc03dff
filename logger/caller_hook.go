package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// wrapperPackages are never reported as the caller. Metric events are logged
// from internal/metrics, so their lines point at the collector that emitted them.
var wrapperPackages = []string{
	"sirupsen/logrus",
	"marketscraper/logger.",
	"marketscraper/internal/metrics.",
}

type callerHook struct {
	skip []string
}

func newCallerHook() *callerHook {
	return &callerHook{skip: wrapperPackages}
}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire sets the entry's Caller to the first frame outside the wrapper packages.
func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !h.wrapped(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func (h *callerHook) wrapped(fn string) bool {
	for _, pkg := range h.skip {
		if strings.Contains(fn, pkg) {
			return true
		}
	}
	return false
}
