package models

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// ParticipantFilter selects a page of participants in sheet order.
type ParticipantFilter struct {
	Page     int
	PageSize int
}
