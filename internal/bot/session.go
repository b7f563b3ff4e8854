package bot

import (
	"time"

	"github.com/noah-isme/referral-bot/internal/models"
)

// State is a position inside a conversation flow.
type State int

const (
	StateRegistering State = iota + 1
	StateAddingLead
	StateLeadInfo
	StateLeadPhone
	StateLeadParent
	StateLeadParentPhone
	StateLeadParentPhone2
	StateBroadcastText
	StateBroadcastConfirm
)

// Flow names a conversation; used for metrics and logs.
type Flow string

const (
	FlowRegistration Flow = "registration"
	FlowLead         Flow = "lead"
	FlowBroadcast    Flow = "broadcast"
)

// Flow reports which conversation a state belongs to.
func (s State) Flow() Flow {
	switch {
	case s == StateRegistering:
		return FlowRegistration
	case s >= StateAddingLead && s <= StateLeadParentPhone2:
		return FlowLead
	default:
		return FlowBroadcast
	}
}

// Session is the staged input of one user's active flow. It lives in memory
// only and is dropped when the flow ends.
type Session struct {
	State     State
	Lead      models.Lead
	Broadcast string
	StartedAt time.Time
}
