package models

// ProgramType is the program category a lead is referred to.
type ProgramType string

const (
	ProgramCampDO  ProgramType = "camp_do"
	ProgramCollege ProgramType = "college"
)

// Valid reports whether p is one of the known categories.
func (p ProgramType) Valid() bool {
	return p == ProgramCampDO || p == ProgramCollege
}

// Label returns the human-facing name used in menus and exports.
func (p ProgramType) Label() string {
	switch p {
	case ProgramCampDO:
		return "4-8 класс (Кэмп/ДО)"
	case ProgramCollege:
		return "9 класс (Колледж)"
	default:
		return string(p)
	}
}

// Lead is one referred prospect.
type Lead struct {
	ChildName     string      `json:"child_name" validate:"required"`
	Age           int         `json:"age" validate:"gte=0"`
	Grade         int         `json:"grade" validate:"min=4,max=9"`
	ContactHandle string      `json:"contact_handle" validate:"required"`
	Phone         string      `json:"phone" validate:"required,startswith=+7,len=12"`
	GuardianName  string      `json:"guardian_name" validate:"required"`
	GuardianPhone string      `json:"guardian_phone" validate:"required,startswith=+7,len=12"`
	ProgramType   ProgramType `json:"program_type,omitempty" validate:"oneof=camp_do college"`
}

// SubmitLeadRequest carries a completed lead dialogue together with the
// identity of the participant who referred it.
type SubmitLeadRequest struct {
	ExternalID string `json:"external_id" validate:"required"`
	ChatID     string `json:"chat_id"`
	Lead       Lead   `json:"lead"`
}

// BroadcastResult reports how a fan-out went.
type BroadcastResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
