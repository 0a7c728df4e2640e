package predict

// Callback is the terminal-state record published once a request finishes.
// The same shape carries both success and failure outcomes; on failure
// Results holds a single error descriptor produced by the orchestrator.
type Callback struct {
	ID       string        `json:"id"`
	Success  bool          `json:"success"`
	TaskName string        `json:"task_name"`
	Count    int           `json:"count"`
	Results  []interface{} `json:"results"`
	Metrics  interface{}   `json:"metrics,omitempty"`
	TenantID string        `json:"tenant_uuid,omitempty"`
}

// WithoutResults returns a copy stripped of raw results, keeping only the
// billing count and outcome.  The audit channel carries this shape so the
// request log never stores inference payloads.
func (c Callback) WithoutResults() Callback {
	out := c
	out.Results = nil
	return out
}
