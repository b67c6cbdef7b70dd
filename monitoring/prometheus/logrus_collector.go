package prometheus

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// logEntriesCount is registered once at package load; every collector
// instance feeds the same series.
var logEntriesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "log_entries_total",
	Help: "Log messages emitted, by level and package prefix.",
}, []string{"level", "prefix"})

// globalPrefix labels entries logged without a package prefix field.
const globalPrefix = "global"

// LogrusCollector is a logrus hook that mirrors log volume into a counter
// vector, so operators can alert on error rates without shipping the log
// stream itself.
type LogrusCollector struct {
	counterVec *prometheus.CounterVec
}

// NewLogrusCollector returns a hook for logrus.AddHook.
func NewLogrusCollector() *LogrusCollector {
	return &LogrusCollector{counterVec: logEntriesCount}
}

// Fire implements logrus.Hook.
func (hook *LogrusCollector) Fire(entry *logrus.Entry) error {
	prefix := globalPrefix
	if v, ok := entry.Data["prefix"]; ok {
		prefix, ok = v.(string)
		if !ok {
			return errors.New("prefix is not a string")
		}
	}
	hook.counterVec.WithLabelValues(entry.Level.String(), prefix).Inc()
	return nil
}

// Levels implements logrus.Hook. Fatal is counted because the bundler's
// post-anchor escalation logs at fatal level without exiting the process.
func (_ *LogrusCollector) Levels() []logrus.Level {
	return []logrus.Level{logrus.InfoLevel, logrus.WarnLevel, logrus.ErrorLevel, logrus.FatalLevel}
}
