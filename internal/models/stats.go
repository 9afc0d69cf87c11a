package models

// AggregateRow сводка событий одного домена-источника за окно.
// Считается при чтении и не хранится.
type AggregateRow struct {
	RefDomain        string   `json:"ref_domain"`
	TotalClicks      int64    `json:"total_clicks"`
	GoodClicks       int64    `json:"good_clicks"`
	BadClicks        int64    `json:"bad_clicks"`
	SuspiciousClicks int64    `json:"suspicious_clicks"`
	AvgResponseTime  float64  `json:"avg_response_time"`
	UniqueVisitors   int64    `json:"unique_visitors"`
	UniqueSessions   int64    `json:"unique_sessions"`
	Countries        []string `json:"countries"`
	Devices          []string `json:"devices"`
	Sources          []string `json:"sources"`
}

type LiveStats struct {
	ActiveSessions int64 `json:"active_sessions"`
	Observers      int   `json:"observers"`
}
