package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest covers [From, To).
type CallsSummaryRequest struct {
	Range TimeRange `json:"range"`
}

type CallsSummary struct {
	Range TimeRange `json:"range"`

	TotalCalls      int `json:"total_calls"`
	PendingCalls    int `json:"pending_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	UnknownCalls    int `json:"unknown_calls"`

	// ByProvider counts calls per script variant (openai, elevenlabs, agent).
	ByProvider map[string]int `json:"by_provider"`

	// SuccessRate is completed / terminal, zero when nothing has finished.
	SuccessRate float64 `json:"success_rate"`
}
