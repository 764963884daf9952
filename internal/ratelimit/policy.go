package ratelimit

import "time"

// Policy is a reusable attempt budget.
type Policy struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Window      time.Duration `yaml:"window" json:"window"`
}

// Policy names used by the API.
const (
	PolicyEvaluation = "evaluation"
	PolicyReport     = "report"
	PolicyLogin      = "login"
)

// DefaultPolicies returns the budgets the service starts with.
// Evaluations are capped at two per minute per user and device.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		PolicyEvaluation: {MaxAttempts: 2, Window: time.Minute},
		PolicyReport:     {MaxAttempts: 5, Window: 10 * time.Minute},
		PolicyLogin:      {MaxAttempts: 5, Window: time.Minute},
	}
}

// EvaluationKey namespaces evaluation attempts by user and device.
func EvaluationKey(username, deviceID string) string {
	return "evaluacion_" + username + "_" + deviceID
}

// ReportKey namespaces abuse reports by device.
func ReportKey(deviceID string) string {
	return "reporte_" + deviceID
}

// LoginKey namespaces login attempts by device.
func LoginKey(deviceID string) string {
	return "login_" + deviceID
}
