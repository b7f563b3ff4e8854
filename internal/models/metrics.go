package models

import "time"

// MetricsSnapshot summarises process counters for the ops API.
type MetricsSnapshot struct {
	UpdatesTotal       uint64    `json:"updates_total"`
	SheetCalls         uint64    `json:"sheet_calls"`
	SheetErrors        uint64    `json:"sheet_errors"`
	AverageSheetCallMs float64   `json:"average_sheet_call_ms"`
	BroadcastDelivered uint64    `json:"broadcast_delivered"`
	BroadcastFailed    uint64    `json:"broadcast_failed"`
	Goroutines         int       `json:"goroutines"`
	GeneratedAt        time.Time `json:"generated_at"`
}
