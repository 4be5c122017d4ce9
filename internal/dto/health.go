package dto

// HealthResponse is the body of the health probes. Store and Driver are
// only set by the readiness probe.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
	Driver string `json:"driver,omitempty"`
}
