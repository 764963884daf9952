package health

import "evalprof/internal/metrics"

// RuleResult represents the outcome of a single rule.
type RuleResult struct {
	Triggered      bool
	Signal         string
	Recommendation string
	Severity       Status
}

// Observation is what rules look at: counter totals plus live gauges.
type Observation struct {
	Counters map[string]int64
	Gauges   Gauges
}

func (o Observation) counter(key metrics.MetricKey) int64 {
	return o.Counters[string(key)]
}

// Rule evaluates one observation.
type Rule func(obs Observation) RuleResult

const (
	// minDenials keeps a handful of blocked users from flagging the service.
	minDenials = 10
	// quotaWarnShare is the storage fill level reported as pressure.
	quotaWarnShare = 0.9
)

// DefaultRules is the rule set used by NewAnalyzer.
func DefaultRules() []Rule {
	return []Rule{
		StorageErrorRule,
		StorageQuotaRule,
		QuotaShareRule,
		CorruptEntryRule,
		DevicePersistRule,
		RateLimitPressureRule,
	}
}

// ---------- RULES ----------

// Backend errors mean reads and writes are silently degrading to misses.
func StorageErrorRule(obs Observation) RuleResult {
	if obs.counter(metrics.StorageErrorsTotal) == 0 {
		return RuleResult{}
	}
	return RuleResult{
		Triggered:      true,
		Signal:         "Storage backend errors detected",
		Recommendation: "Check Redis connectivity and server logs",
		Severity:       StatusCritical,
	}
}

func StorageQuotaRule(obs Observation) RuleResult {
	if obs.counter(metrics.StorageQuotaTotal) == 0 {
		return RuleResult{}
	}
	return RuleResult{
		Triggered:      true,
		Signal:         "Storage quota exceeded",
		Recommendation: "Raise storage.quota_bytes or enable cache.sweep_interval",
		Severity:       StatusDegraded,
	}
}

// QuotaShareRule fires before writes start failing.
func QuotaShareRule(obs Observation) RuleResult {
	if obs.Gauges.StorageQuotaShare < quotaWarnShare {
		return RuleResult{}
	}
	return RuleResult{
		Triggered:      true,
		Signal:         "Storage close to its quota",
		Recommendation: "Clear expired entries or raise storage.quota_bytes",
		Severity:       StatusDegraded,
	}
}

func CorruptEntryRule(obs Observation) RuleResult {
	if obs.counter(metrics.CacheCorruptTotal) == 0 {
		return RuleResult{}
	}
	return RuleResult{
		Triggered:      true,
		Signal:         "Malformed cache entries found",
		Recommendation: "Look for other writers under the ipn_ prefix",
		Severity:       StatusDegraded,
	}
}

func DevicePersistRule(obs Observation) RuleResult {
	if obs.counter(metrics.DeviceIDPersistFailures) == 0 {
		return RuleResult{}
	}
	return RuleResult{
		Triggered:      true,
		Signal:         "Device ids could not be persisted",
		Recommendation: "Clients may block cookies; their ids fall back to fingerprints",
		Severity:       StatusDegraded,
	}
}

// More denials than admissions usually means a policy is too strict
// or someone is hammering an endpoint.
func RateLimitPressureRule(obs Observation) RuleResult {
	denied := obs.counter(metrics.RateLimitDeniedTotal)
	allowed := obs.counter(metrics.RateLimitAllowedTotal)

	if denied < minDenials || denied <= allowed {
		return RuleResult{}
	}
	return RuleResult{
		Triggered:      true,
		Signal:         "Heavy rate limit denials",
		Recommendation: "Review ratelimit.policies or look for abusive clients",
		Severity:       StatusDegraded,
	}
}
