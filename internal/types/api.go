package types

// DiagnoseResponse is the body returned by POST /api/diagnose. DiagnosisID
// is null when persistence failed; the diagnosis text is returned regardless.
type DiagnoseResponse struct {
	Diagnosis   string  `json:"diagnosis"`
	Status      string  `json:"status"`
	Timestamp   string  `json:"timestamp"`
	DiagnosisID *string `json:"diagnosis_id"`
}

// Health sub-check verdicts.
const (
	CheckOK    = "healthy"
	CheckError = "unhealthy"
)

// HealthCheck is the result of one health sub-check.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthStatus is the body returned by GET /health. Every sub-check is
// enumerated, passing or not.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
}
