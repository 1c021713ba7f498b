package api

import "time"

// QueryFilter defines criteria for querying access records.
type QueryFilter struct {
	Since      time.Time `json:"since,omitempty"`
	Until      time.Time `json:"until,omitempty"`
	Method     string    `json:"method,omitempty"`
	PathPrefix string    `json:"path_prefix,omitempty"`
	Outcome    Outcome   `json:"outcome,omitempty"`
	Status     int       `json:"status,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	Offset     int       `json:"offset,omitempty"`
}

// AccessStats provides summary statistics for the admin overview.
type AccessStats struct {
	TotalRequests int            `json:"total_requests"`
	MatchedCount  int            `json:"matched_count"`
	RejectedCount int            `json:"rejected_count"`
	ByKind        map[string]int `json:"by_kind"`
	ByStatus      map[int]int    `json:"by_status"`
	ByMethod      map[string]int `json:"by_method"`
}
