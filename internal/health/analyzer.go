package health

import (
	"strings"

	"evalprof/internal/logs"
	"evalprof/internal/metrics"
)

// StorageUsage is implemented by backends that track their footprint.
type StorageUsage interface {
	Used() int
	Quota() int
}

// KeyCounter reports how many keys a component tracks.
type KeyCounter interface {
	Len() int
}

// logPattern flags a message seen at least threshold times in the
// recent log window.
type logPattern struct {
	level     logs.Level
	contains  string
	threshold int
	result    RuleResult
}

var logPatterns = []logPattern{
	{
		level:     logs.WARN,
		contains:  "write failed",
		threshold: 3,
		result: RuleResult{
			Signal:         "Repeated cache write failures detected in logs",
			Recommendation: "Check storage capacity and backend availability",
			Severity:       StatusDegraded,
		},
	},
	{
		level:     logs.ERROR,
		contains:  "panic",
		threshold: 1,
		result: RuleResult{
			Signal:         "Application panics detected in logs",
			Recommendation: "Inspect stack traces and stabilize error handling",
			Severity:       StatusCritical,
		},
	},
}

// logWindow is how many recent entries the analyzer scans.
const logWindow = 100

// Analyzer turns counters, live gauges and recent logs into a Report.
type Analyzer struct {
	metrics *metrics.Registry
	logger  *logs.Logger
	rules   []Rule
	storage StorageUsage
	limiter KeyCounter
}

func NewAnalyzer(reg *metrics.Registry, logger *logs.Logger) *Analyzer {
	return &Analyzer{
		metrics: reg,
		logger:  logger,
		rules:   DefaultRules(),
	}
}

// WithStorage adds storage usage to every report.
func (a *Analyzer) WithStorage(s StorageUsage) *Analyzer {
	a.storage = s
	return a
}

// WithLimiter adds the tracked rate-limit key count to every report.
func (a *Analyzer) WithLimiter(l KeyCounter) *Analyzer {
	a.limiter = l
	return a
}

func (a *Analyzer) Analyze() Report {
	obs := Observation{
		Counters: a.metrics.Snapshot(),
		Gauges:   a.gauges(),
	}

	report := Report{
		OverallStatus:   StatusOK,
		Signals:         []string{},
		Recommendations: []string{},
		Gauges:          obs.Gauges,
	}

	for _, rule := range a.rules {
		if res := rule(obs); res.Triggered {
			report.add(res)
		}
	}
	for _, res := range a.scanLogs() {
		report.add(res)
	}

	report.Summary = "System is healthy"
	if report.OverallStatus != StatusOK {
		report.Summary = "System health issues detected"
	}
	return report
}

func (a *Analyzer) gauges() Gauges {
	var g Gauges
	if a.limiter != nil {
		g.RateLimitKeys = a.limiter.Len()
	}
	if a.storage != nil {
		g.StorageUsedBytes = a.storage.Used()
		g.StorageQuotaBytes = a.storage.Quota()
		if g.StorageQuotaBytes > 0 {
			g.StorageQuotaShare = float64(g.StorageUsedBytes) / float64(g.StorageQuotaBytes)
		}
	}
	return g
}

func (a *Analyzer) scanLogs() []RuleResult {
	counts := make([]int, len(logPatterns))
	for _, entry := range a.logger.GetLast(logWindow) {
		for i, p := range logPatterns {
			if entry.Level == p.level && strings.Contains(entry.Message, p.contains) {
				counts[i]++
			}
		}
	}

	var out []RuleResult
	for i, p := range logPatterns {
		if counts[i] >= p.threshold {
			out = append(out, p.result)
		}
	}
	return out
}
