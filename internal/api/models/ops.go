package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus is the operator view of the service.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
	LastRun    *RunSummary       `json:"lastRun,omitempty"`
	Warnings   []string          `json:"warnings"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus represents the status of an upstream provider.
type ProviderStatus struct {
	Provider          string       `json:"provider"`
	Status            HealthStatus `json:"status"`
	CircuitState      string       `json:"circuitState"`
	LastSuccessAt     *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt     *Timestamp   `json:"lastFailureAt,omitempty"`
	LastRateLimitedAt *Timestamp   `json:"lastRateLimitedAt,omitempty"`
	RateLimitedTotal  int64        `json:"rateLimitedTotal"`
	Message           *string      `json:"message,omitempty"`
}

// RunSummary is the short form of the most recent run.
type RunSummary struct {
	RunID        string    `json:"runId"`
	FinishedAt   Timestamp `json:"finishedAt"`
	ZipCodes     []string  `json:"zipCodes"`
	Observations int       `json:"observations"`
	Fetches      int       `json:"fetches"`
	Failed       int       `json:"failed"`
	Abandoned    []string  `json:"abandoned"`
	Warnings     int       `json:"warnings"`
}
