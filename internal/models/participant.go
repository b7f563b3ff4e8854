package models

// Participant is a registered ambassador. One participant owns one spreadsheet row.
type Participant struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Cohort     int    `json:"cohort"`
	Points     int    `json:"points"`
	Status     string `json:"status,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	Comment    string `json:"comment,omitempty"`
	ChatID     string `json:"chat_id,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

// ParticipantRecord is a participant together with its packed leads and the
// 1-based sheet row it was read from.
type ParticipantRecord struct {
	Participant
	Row      int    `json:"-"`
	Reserved string `json:"-"`
	Leads    []Lead `json:"leads"`
}

// ParticipantStats summarises a participant for the stats screen and the ops API.
type ParticipantStats struct {
	Participant Participant `json:"participant"`
	Points      int         `json:"points"`
	Leads       []Lead      `json:"leads"`
}

// RegisterRequest carries a completed registration dialogue.
type RegisterRequest struct {
	ExternalID string `json:"external_id" validate:"required,numeric"`
	ChatID     string `json:"chat_id" validate:"required"`
	Name       string `json:"name" validate:"required,max=255"`
	Cohort     int    `json:"cohort" validate:"min=1,max=4"`
}
