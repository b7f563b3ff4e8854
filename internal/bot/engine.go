// Package bot holds the chat conversation engine and its Telegram adapter.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/referral-bot/internal/models"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
	"github.com/noah-isme/referral-bot/pkg/logger"
)

// Inbound is one update from a chat user, already stripped of transport detail.
type Inbound struct {
	UserID   int64
	ChatID   int64
	Text     string
	Command  string
	Callback string
}

// Kind classifies an update for metrics.
func (in Inbound) Kind() string {
	switch {
	case in.Callback != "":
		return "callback"
	case in.Command != "":
		return "command"
	default:
		return "message"
	}
}

// Choice is an inline button.
type Choice struct {
	Label string
	Data  string
}

// Outbound is one reply. Choices render as inline buttons; Menu attaches the
// main reply keyboard.
type Outbound struct {
	Text    string
	Choices [][]Choice
	Menu    bool
}

// Messenger delivers replies to a chat.
type Messenger interface {
	Deliver(ctx context.Context, chatID int64, msg Outbound) error
}

type participantService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.Participant, error)
	Welcome(ctx context.Context, externalID, chatID string) (*models.ParticipantRecord, error)
	Stats(ctx context.Context, externalID string) (*models.ParticipantStats, error)
}

type leadService interface {
	EnsureRegistered(ctx context.Context, externalID string) (*models.ParticipantRecord, error)
	Submit(ctx context.Context, req models.SubmitLeadRequest) (*models.ParticipantRecord, error)
}

type broadcaster interface {
	Enqueue(ctx context.Context, adminChatID int64, text string) error
}

type engineObserver interface {
	ObserveUpdate(kind string)
	ObserveFlow(flow, outcome string)
}

// Flow outcomes.
const (
	outcomeCompleted = "completed"
	outcomeCancelled = "cancelled"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// EngineDeps bundles the collaborators of an Engine.
type EngineDeps struct {
	Participants participantService
	Leads        leadService
	Broadcasts   broadcaster
	Messenger    Messenger
	Observer     engineObserver
	AdminIDs     []int64
	Logger       *zap.Logger
}

// Engine runs the per-user conversation state machines. Sessions are kept in
// memory, keyed by user id; a user has at most one active flow.
type Engine struct {
	participants participantService
	leads        leadService
	broadcasts   broadcaster
	messenger    Messenger
	observer     engineObserver
	admins       map[int64]struct{}
	logger       *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*Session
	now      func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(deps EngineDeps) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	admins := make(map[int64]struct{}, len(deps.AdminIDs))
	for _, id := range deps.AdminIDs {
		admins[id] = struct{}{}
	}
	return &Engine{
		participants: deps.Participants,
		leads:        deps.Leads,
		broadcasts:   deps.Broadcasts,
		messenger:    deps.Messenger,
		observer:     deps.Observer,
		admins:       admins,
		logger:       deps.Logger,
		sessions:     make(map[int64]*Session),
		now:          time.Now,
	}
}

// turn carries one inbound update through the engine.
type turn struct {
	in     Inbound
	logger *zap.Logger
}

func (t turn) externalID() string { return strconv.FormatInt(t.in.UserID, 10) }
func (t turn) chatID() string     { return strconv.FormatInt(t.in.ChatID, 10) }

// Handle processes one inbound update. Replies go out through the Messenger.
func (e *Engine) Handle(ctx context.Context, in Inbound) {
	if e.observer != nil {
		e.observer.ObserveUpdate(in.Kind())
	}
	t := turn{in: in, logger: logger.WithUpdate(e.logger, in.UserID, in.ChatID)}

	switch {
	case in.Callback != "":
		e.handleCallback(ctx, t)
	case in.Command != "":
		e.handleCommand(ctx, t, in.Command)
	default:
		e.handleText(ctx, t)
	}
}

// IsAdmin reports whether userID is on the administrator allow-list.
func (e *Engine) IsAdmin(userID int64) bool {
	_, ok := e.admins[userID]
	return ok
}

// ActiveSession returns a copy of the user's session.
func (e *Engine) ActiveSession(userID int64) (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (e *Engine) handleCommand(ctx context.Context, t turn, command string) {
	switch command {
	case "cancel":
		e.cancel(ctx, t)
	case "start":
		e.start(ctx, t)
	case "user":
		e.enterRegistration(ctx, t)
	case "add":
		e.enterLead(ctx, t)
	case "root":
		e.adminPanel(ctx, t)
	case "stats":
		e.stats(ctx, t)
	case "info":
		e.reply(ctx, t, Outbound{Text: msgInfoChoose, Choices: infoChoices()})
	default:
		e.reply(ctx, t, Outbound{Text: msgUnknown, Menu: true})
	}
}

func (e *Engine) handleCallback(ctx context.Context, t turn) {
	data := t.in.Callback
	switch {
	case data == CallbackRegister:
		e.enterRegistration(ctx, t)
	case data == CallbackLeadCampDO || data == CallbackLeadCollege:
		e.chooseProgram(ctx, t, data)
	case data == CallbackStartBroadcast:
		e.enterBroadcast(ctx, t)
	case data == CallbackConfirmBroadcast:
		e.confirmBroadcast(ctx, t)
	case data == CallbackCancelBroadcast:
		e.cancelBroadcast(ctx, t)
	case strings.HasPrefix(data, callbackInfoPrefix):
		info, ok := programInfos[data]
		if !ok {
			e.reply(ctx, t, Outbound{Text: msgStaleButton})
			return
		}
		e.reply(ctx, t, Outbound{Text: info.Title + "\n\n" + info.Text})
	default:
		t.logger.Warn("unknown callback", zap.String("data", data))
		e.reply(ctx, t, Outbound{Text: msgStaleButton})
	}
}

func (e *Engine) handleText(ctx context.Context, t turn) {
	session, ok := e.session(t.in.UserID)

	// Menu labels act as commands unless an administrator is typing the
	// broadcast text, which is taken verbatim.
	if !ok || session.State != StateBroadcastText {
		if e.handleMenu(ctx, t) {
			return
		}
	}
	if !ok {
		e.reply(ctx, t, Outbound{Text: msgUnknown, Menu: true})
		return
	}

	switch session.State {
	case StateRegistering:
		e.register(ctx, t)
	case StateAddingLead:
		e.reply(ctx, t, Outbound{Text: msgLeadChooseProgram, Choices: programChoices()})
	case StateLeadInfo:
		e.leadInfo(ctx, t, session)
	case StateLeadPhone:
		e.leadHandle(ctx, t, session)
	case StateLeadParent:
		e.leadPhone(ctx, t, session)
	case StateLeadParentPhone:
		e.leadGuardianName(ctx, t, session)
	case StateLeadParentPhone2:
		e.leadGuardianPhone(ctx, t, session)
	case StateBroadcastText:
		e.broadcastText(ctx, t, session)
	case StateBroadcastConfirm:
		e.reply(ctx, t, Outbound{Text: msgBroadcastConfirm, Choices: confirmChoices()})
	}
}

func (e *Engine) handleMenu(ctx context.Context, t turn) bool {
	switch strings.TrimSpace(t.in.Text) {
	case MenuAbout:
		e.reply(ctx, t, Outbound{Text: msgRules})
	case MenuStats:
		e.stats(ctx, t)
	case MenuLead:
		e.enterLead(ctx, t)
	case MenuInfo:
		e.reply(ctx, t, Outbound{Text: msgInfoChoose, Choices: infoChoices()})
	default:
		return false
	}
	return true
}

func (e *Engine) start(ctx context.Context, t turn) {
	_, err := e.participants.Welcome(ctx, t.externalID(), t.chatID())
	switch {
	case err == nil:
		e.reply(ctx, t, Outbound{Text: msgWelcomeBack, Menu: true})
	case errors.Is(err, appErrors.ErrNotFound):
		e.reply(ctx, t, Outbound{Text: msgRegistrationPrompt, Choices: registrationChoices()})
	default:
		t.logger.Error("start lookup failed", zap.Error(err))
		e.reply(ctx, t, Outbound{Text: msgStoreError})
	}
}

func (e *Engine) stats(ctx context.Context, t turn) {
	stats, err := e.participants.Stats(ctx, t.externalID())
	switch {
	case err == nil:
		e.reply(ctx, t, Outbound{Text: statsText(stats)})
	case errors.Is(err, appErrors.ErrNotFound):
		e.reply(ctx, t, Outbound{Text: msgNotRegistered})
	default:
		t.logger.Error("stats lookup failed", zap.Error(err))
		e.reply(ctx, t, Outbound{Text: msgStoreError})
	}
}

func (e *Engine) cancel(ctx context.Context, t turn) {
	if s, ok := e.endSession(t.in.UserID); ok {
		e.observeFlow(s.State.Flow(), outcomeCancelled)
	}
	e.reply(ctx, t, Outbound{Text: msgCancelled, Menu: true})
}

// Registration

func (e *Engine) enterRegistration(ctx context.Context, t turn) {
	e.beginSession(t.in.UserID, StateRegistering)
	e.reply(ctx, t, Outbound{Text: msgRegistrationAsk})
}

func (e *Engine) register(ctx context.Context, t turn) {
	name, cohort, err := ParseRegistration(t.in.Text)
	if err != nil {
		text := msgRegistrationBad
		if errors.Is(err, errOutOfRange) {
			text = msgCohortOutOfRange
		}
		e.reply(ctx, t, Outbound{Text: text})
		return
	}

	p, err := e.participants.Register(ctx, models.RegisterRequest{
		ExternalID: t.externalID(),
		ChatID:     t.chatID(),
		Name:       name,
		Cohort:     cohort,
	})
	switch {
	case err == nil:
		e.finish(FlowRegistration, outcomeCompleted, t.in.UserID)
		t.logger.Info("registration completed", zap.Int("participant_id", p.ID))
		e.reply(ctx, t, Outbound{Text: msgRegistrationDone, Menu: true})
	case errors.Is(err, appErrors.ErrConflict):
		e.finish(FlowRegistration, outcomeRejected, t.in.UserID)
		e.reply(ctx, t, Outbound{Text: msgAlreadyRegistered, Menu: true})
	case errors.Is(err, appErrors.ErrValidation):
		e.reply(ctx, t, Outbound{Text: msgRegistrationBad})
	default:
		e.finish(FlowRegistration, outcomeFailed, t.in.UserID)
		t.logger.Error("registration failed", zap.Error(err))
		e.reply(ctx, t, Outbound{Text: msgRegistrationError})
	}
}

// Lead intake

func (e *Engine) enterLead(ctx context.Context, t turn) {
	e.endSession(t.in.UserID)
	_, err := e.leads.EnsureRegistered(ctx, t.externalID())
	switch {
	case err == nil:
		e.beginSession(t.in.UserID, StateAddingLead)
		e.reply(ctx, t, Outbound{Text: msgLeadChooseProgram, Choices: programChoices()})
	case errors.Is(err, appErrors.ErrPreconditionFailed):
		e.observeFlow(FlowLead, outcomeRejected)
		e.reply(ctx, t, Outbound{Text: msgLeadNotRegistered})
	default:
		e.observeFlow(FlowLead, outcomeFailed)
		t.logger.Error("lead entry lookup failed", zap.Error(err))
		e.reply(ctx, t, Outbound{Text: msgStoreError})
	}
}

func (e *Engine) chooseProgram(ctx context.Context, t turn, data string) {
	session, ok := e.session(t.in.UserID)
	if !ok || session.State != StateAddingLead {
		e.reply(ctx, t, Outbound{Text: msgStaleButton})
		return
	}
	program := models.ProgramCampDO
	if data == CallbackLeadCollege {
		program = models.ProgramCollege
	}
	e.update(t.in.UserID, func(s *Session) {
		s.Lead.ProgramType = program
		s.State = StateLeadInfo
	})
	e.reply(ctx, t, Outbound{Text: msgLeadInfoAsk})
}

func (e *Engine) leadInfo(ctx context.Context, t turn, _ Session) {
	name, age, grade, err := ParseLeadInfo(t.in.Text)
	if err != nil {
		text := msgLeadInfoBad
		switch {
		case errors.Is(err, errOutOfRange):
			text = msgGradeOutOfRange
		case errors.Is(err, errNegativeAge):
			text = msgAgeNegative
		}
		e.reply(ctx, t, Outbound{Text: text})
		return
	}
	e.update(t.in.UserID, func(s *Session) {
		s.Lead.ChildName = name
		s.Lead.Age = age
		s.Lead.Grade = grade
		s.State = StateLeadPhone
	})
	e.reply(ctx, t, Outbound{Text: msgLeadHandleAsk})
}

func (e *Engine) leadHandle(ctx context.Context, t turn, _ Session) {
	handle := NormalizeHandle(t.in.Text)
	e.update(t.in.UserID, func(s *Session) {
		s.Lead.ContactHandle = handle
		s.State = StateLeadParent
	})
	e.reply(ctx, t, Outbound{Text: msgLeadPhoneAsk})
}

func (e *Engine) leadPhone(ctx context.Context, t turn, _ Session) {
	phone, err := NormalizePhone(t.in.Text)
	if err != nil {
		e.reply(ctx, t, Outbound{Text: phoneError(err)})
		return
	}
	e.update(t.in.UserID, func(s *Session) {
		s.Lead.Phone = phone
		s.State = StateLeadParentPhone
	})
	e.reply(ctx, t, Outbound{Text: msgGuardianNameAsk})
}

func (e *Engine) leadGuardianName(ctx context.Context, t turn, _ Session) {
	name := strings.TrimSpace(t.in.Text)
	if name == "" {
		e.reply(ctx, t, Outbound{Text: msgGuardianNameBad})
		return
	}
	e.update(t.in.UserID, func(s *Session) {
		s.Lead.GuardianName = name
		s.State = StateLeadParentPhone2
	})
	e.reply(ctx, t, Outbound{Text: msgGuardianPhoneAsk})
}

func (e *Engine) leadGuardianPhone(ctx context.Context, t turn, session Session) {
	phone, err := NormalizePhone(t.in.Text)
	if err != nil {
		e.reply(ctx, t, Outbound{Text: phoneError(err)})
		return
	}
	lead := session.Lead
	lead.GuardianPhone = phone

	rec, err := e.leads.Submit(ctx, models.SubmitLeadRequest{
		ExternalID: t.externalID(),
		ChatID:     t.chatID(),
		Lead:       lead,
	})
	switch {
	case err == nil:
		e.finish(FlowLead, outcomeCompleted, t.in.UserID)
		t.logger.Info("lead submitted", zap.Int("participant_id", rec.ID), zap.String("program", string(lead.ProgramType)))
		e.reply(ctx, t, Outbound{Text: msgLeadDone, Menu: true})
	case errors.Is(err, appErrors.ErrPreconditionFailed):
		e.finish(FlowLead, outcomeRejected, t.in.UserID)
		e.reply(ctx, t, Outbound{Text: msgLeadLostParticipant})
	case errors.Is(err, appErrors.ErrValidation):
		// The program choice survives; the typed details are asked for again.
		t.logger.Warn("lead rejected by validation", zap.Error(err))
		e.update(t.in.UserID, func(s *Session) {
			s.Lead = models.Lead{ProgramType: s.Lead.ProgramType}
			s.State = StateLeadInfo
		})
		e.reply(ctx, t, Outbound{Text: msgLeadRejected})
	default:
		e.finish(FlowLead, outcomeFailed, t.in.UserID)
		t.logger.Error("lead submission failed", zap.Error(err))
		e.reply(ctx, t, Outbound{Text: msgLeadError, Menu: true})
	}
}

func phoneError(err error) string {
	if errors.Is(err, errPhoneLength) {
		return msgPhoneBadLength
	}
	return msgPhoneBadPrefix
}

// Broadcast

func (e *Engine) adminPanel(ctx context.Context, t turn) {
	if !e.IsAdmin(t.in.UserID) {
		e.reply(ctx, t, Outbound{Text: msgAdminOnly})
		return
	}
	e.reply(ctx, t, Outbound{Text: msgAdminPanel, Choices: adminChoices()})
}

func (e *Engine) enterBroadcast(ctx context.Context, t turn) {
	if !e.IsAdmin(t.in.UserID) {
		e.reply(ctx, t, Outbound{Text: msgAdminOnly})
		return
	}
	e.beginSession(t.in.UserID, StateBroadcastText)
	e.reply(ctx, t, Outbound{Text: msgBroadcastAsk})
}

func (e *Engine) broadcastText(ctx context.Context, t turn, _ Session) {
	if strings.TrimSpace(t.in.Text) == "" {
		e.reply(ctx, t, Outbound{Text: msgBroadcastEmpty})
		return
	}
	text := t.in.Text
	e.update(t.in.UserID, func(s *Session) {
		s.Broadcast = text
		s.State = StateBroadcastConfirm
	})
	e.reply(ctx, t, Outbound{Text: msgBroadcastPreview})
	e.reply(ctx, t, Outbound{Text: text})
	e.reply(ctx, t, Outbound{Text: msgBroadcastConfirm, Choices: confirmChoices()})
}

func (e *Engine) confirmBroadcast(ctx context.Context, t turn) {
	if !e.IsAdmin(t.in.UserID) {
		e.reply(ctx, t, Outbound{Text: msgAdminOnly})
		return
	}
	session, ok := e.session(t.in.UserID)
	if !ok || session.State != StateBroadcastConfirm {
		e.reply(ctx, t, Outbound{Text: msgStaleButton})
		return
	}
	e.endSession(t.in.UserID)

	if err := e.broadcasts.Enqueue(ctx, t.in.ChatID, session.Broadcast); err != nil {
		e.observeFlow(FlowBroadcast, outcomeFailed)
		t.logger.Error("broadcast start failed", zap.Error(err))
		e.reply(ctx, t, Outbound{Text: msgBroadcastError})
		return
	}
	e.observeFlow(FlowBroadcast, outcomeCompleted)
	e.reply(ctx, t, Outbound{Text: msgBroadcastStarted})
}

func (e *Engine) cancelBroadcast(ctx context.Context, t turn) {
	session, ok := e.session(t.in.UserID)
	if !ok || session.State.Flow() != FlowBroadcast {
		e.reply(ctx, t, Outbound{Text: msgStaleButton})
		return
	}
	e.finish(FlowBroadcast, outcomeCancelled, t.in.UserID)
	e.reply(ctx, t, Outbound{Text: msgBroadcastCancelled})
}

// Sessions

func (e *Engine) beginSession(userID int64, state State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[userID] = &Session{State: state, StartedAt: e.now()}
}

func (e *Engine) session(userID int64) (Session, bool) {
	return e.ActiveSession(userID)
}

func (e *Engine) update(userID int64, fn func(*Session)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[userID]; ok {
		fn(s)
	}
}

func (e *Engine) endSession(userID int64) (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[userID]
	if !ok {
		return Session{}, false
	}
	delete(e.sessions, userID)
	return *s, true
}

func (e *Engine) finish(flow Flow, outcome string, userID int64) {
	e.endSession(userID)
	e.observeFlow(flow, outcome)
}

func (e *Engine) observeFlow(flow Flow, outcome string) {
	if e.observer != nil {
		e.observer.ObserveFlow(string(flow), outcome)
	}
}

func (e *Engine) reply(ctx context.Context, t turn, msg Outbound) {
	if err := e.messenger.Deliver(ctx, t.in.ChatID, msg); err != nil {
		t.logger.Warn("deliver reply failed", zap.Error(err))
	}
}
