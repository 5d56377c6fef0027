// Package dialogue maps a session and one inbound message to the next session,
// the reply text and an optional lead. It performs no I/O.
package dialogue

import (
	"strings"
	"time"
	"unicode/utf8"
)

const minNameLength = 2

// Config customizes the clinic-facing parts of the conversation.
type Config struct {
	ClinicName  string
	Convenios   []string
	HandoffLink string
	Slots       SlotCatalog
	// Channel tags every lead produced by the engine.
	Channel string
}

// Turn is one inbound message.
type Turn struct {
	Text      string
	RawSender string
	At        time.Time
	// Channel overrides Config.Channel for leads produced on this turn.
	Channel string
}

// Result is the outcome of a turn. Session, Reply and Lead are computed together.
type Result struct {
	Session Session
	Reply   string
	// Lead is set only when a booking was confirmed on this turn.
	Lead *LeadRecord
	// Handoff is true when the turn was answered with the attendant link.
	Handoff bool
}

// Engine is the booking state machine. It is safe for concurrent use.
type Engine struct {
	handoffLink string
	channel     string
	slots       SlotCatalog
	menu        string
	coverage    string
}

// NewEngine builds an engine, filling missing configuration with the clinic defaults.
func NewEngine(cfg Config) *Engine {
	if strings.TrimSpace(cfg.ClinicName) == "" {
		cfg.ClinicName = "Clínica Sorriso Nova Era"
	}
	if len(cfg.Convenios) == 0 {
		cfg.Convenios = []string{"OdontoPrev", "Amil Dental", "Unimed Odonto"}
	}
	if cfg.Channel == "" {
		cfg.Channel = "twilio-sandbox"
	}
	slots := DefaultSlotCatalog()
	for p, pair := range cfg.Slots {
		if p != PeriodMorning && p != PeriodAfternoon {
			continue
		}
		if pair[0] != "" && pair[1] != "" {
			slots[p] = pair
		}
	}
	return &Engine{
		handoffLink: cfg.HandoffLink,
		channel:     cfg.Channel,
		slots:       slots,
		menu:        menuText(cfg.ClinicName),
		coverage:    coverageText(cfg.Convenios),
	}
}

// MenuText returns the canonical main menu.
func (e *Engine) MenuText() string { return e.menu }

// HandoffText returns the attendant handoff reply.
func (e *Engine) HandoffText() string { return handoffText(e.handoffLink) }

// Slots returns the catalog in use.
func (e *Engine) Slots() SlotCatalog {
	out := make(SlotCatalog, len(e.slots))
	for p, pair := range e.slots {
		out[p] = pair
	}
	return out
}

// Step computes the next session, reply and optional lead for one turn.
func (e *Engine) Step(s Session, t Turn) Result {
	if !s.State.Valid() {
		s = s.Reset()
	}
	normalized := normalize(t.Text)

	switch classify(globalRules, normalized) {
	case intentReset:
		return Result{Session: s.Reset(), Reply: e.menu}
	case intentHandoff:
		return Result{Session: s, Reply: e.HandoffText(), Handoff: true}
	}

	in := classify(stateRules[s.State], normalized)
	switch s.State {
	case StateMenu:
		return e.stepMenu(s, in)
	case StateCoverageYesNo:
		return e.stepCoverage(s, in)
	case StateAskPeriod:
		return e.stepAskPeriod(s, in)
	case StatePickSlot:
		return e.stepPickSlot(s, in)
	case StateAskName:
		return e.stepAskName(s, t.Text)
	case StateConfirm:
		return e.stepConfirm(s, in, t)
	}
	return Result{Session: s.Reset(), Reply: e.menu}
}

func (e *Engine) stepMenu(s Session, in intent) Result {
	switch in {
	case intentBook:
		s.State = StateAskPeriod
		return Result{Session: s, Reply: replyAskPeriod}
	case intentCoverage:
		s.State = StateCoverageYesNo
		return Result{Session: s, Reply: e.coverage}
	case intentCare:
		return Result{Session: s, Reply: replyCareInstructions}
	case intentAttendant:
		return Result{Session: s, Reply: e.HandoffText(), Handoff: true}
	}
	return Result{Session: s, Reply: e.menu}
}

func (e *Engine) stepCoverage(s Session, in intent) Result {
	switch in {
	case intentYes:
		s.State = StateAskPeriod
		return Result{Session: s, Reply: replyCoverageAskPeriod}
	case intentNo:
		return Result{Session: s.Reset(), Reply: replyCoverageDeclined}
	}
	return Result{Session: s, Reply: replyCoverageReprompt}
}

func (e *Engine) stepAskPeriod(s Session, in intent) Result {
	switch in {
	case intentMorning:
		s.Period = PeriodMorning
	case intentAfternoon:
		s.Period = PeriodAfternoon
	default:
		return Result{Session: s, Reply: replyPeriodReprompt}
	}
	s.State = StatePickSlot
	return Result{Session: s, Reply: slotOptionsText(s.Period, e.slots[s.Period])}
}

func (e *Engine) stepPickSlot(s Session, in intent) Result {
	choice := 0
	switch in {
	case intentSlotOne:
		choice = 1
	case intentSlotTwo:
		choice = 2
	}
	label, ok := e.slots.Slot(s.Period, choice)
	if !ok {
		return Result{Session: s, Reply: replySlotReprompt}
	}
	s.SlotChoice = label
	// After "reagendar" the name is kept and reused in the new CONFIRM
	// summary, so ASK_NAME is only visited when no name is known yet.
	if s.PatientName != "" {
		s.State = StateConfirm
		return Result{Session: s, Reply: summaryText(s)}
	}
	s.State = StateAskName
	return Result{Session: s, Reply: replyAskName}
}

func (e *Engine) stepAskName(s Session, raw string) Result {
	name := strings.Join(strings.Fields(strings.ToValidUTF8(raw, "")), " ")
	if utf8.RuneCountInString(name) < minNameLength {
		return Result{Session: s, Reply: replyNameReprompt}
	}
	s.PatientName = name
	s.State = StateConfirm
	return Result{Session: s, Reply: summaryText(s)}
}

func (e *Engine) stepConfirm(s Session, in intent, t Turn) Result {
	switch in {
	case intentConfirm:
		channel := e.channel
		if t.Channel != "" {
			channel = t.Channel
		}
		lead := &LeadRecord{
			Timestamp:   t.At.UTC(),
			UserID:      s.UserID,
			RawSender:   t.RawSender,
			PatientName: s.PatientName,
			Period:      s.Period,
			SlotChoice:  s.SlotChoice,
			Channel:     channel,
		}
		return Result{Session: s.Reset(), Reply: replyConfirmed, Lead: lead}
	case intentReschedule:
		s.State = StateAskPeriod
		return Result{Session: s, Reply: replyReschedule}
	case intentCancel:
		return Result{Session: s.Reset(), Reply: replyCancelled}
	}
	return Result{Session: s, Reply: replyConfirmReprompt}
}
