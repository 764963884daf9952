package health

// Status represents overall service health.
type Status string

const (
	StatusOK       Status = "OK"
	StatusDegraded Status = "DEGRADED"
	StatusCritical Status = "CRITICAL"
)

// rank orders statuses so a report only ever escalates.
func (s Status) rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

func escalate(cur, next Status) Status {
	if next.rank() > cur.rank() {
		return next
	}
	return cur
}

// Gauges are point-in-time readings taken while building a report.
// Storage fields stay zero for backends that do not track usage.
type Gauges struct {
	RateLimitKeys     int     `json:"ratelimit_keys"`
	StorageUsedBytes  int     `json:"storage_used_bytes"`
	StorageQuotaBytes int     `json:"storage_quota_bytes"`
	StorageQuotaShare float64 `json:"storage_quota_share"`
}

// Report is the summary served at /health.
type Report struct {
	OverallStatus   Status   `json:"overall_status"`
	Summary         string   `json:"summary"`
	Signals         []string `json:"signals"`
	Recommendations []string `json:"recommendations"`
	Gauges          Gauges   `json:"gauges"`
}

func (r *Report) add(res RuleResult) {
	r.Signals = append(r.Signals, res.Signal)
	r.Recommendations = append(r.Recommendations, res.Recommendation)
	r.OverallStatus = escalate(r.OverallStatus, res.Severity)
}
