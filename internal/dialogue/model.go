package dialogue

import "time"

// State is the position of a session in the booking conversation.
type State uint8

const (
	// StateMenu awaits a top-level menu choice. It is the initial and reset state.
	StateMenu State = iota
	// StateCoverageYesNo awaits yes/no after the coverage info was shown.
	StateCoverageYesNo
	// StateAskPeriod awaits a morning/afternoon choice.
	StateAskPeriod
	// StatePickSlot awaits slot 1 or 2 within the chosen period.
	StatePickSlot
	// StateAskName awaits the patient's full name.
	StateAskName
	// StateConfirm awaits confirmar/reagendar/cancelar on the booking summary.
	StateConfirm
)

var stateNames = [...]string{
	StateMenu:          "menu",
	StateCoverageYesNo: "conv_yesno",
	StateAskPeriod:     "ask_period",
	StatePickSlot:      "pick_slot",
	StateAskName:       "ask_name",
	StateConfirm:       "confirm",
}

// String returns the stable tag used in logs and metrics.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	return int(s) < len(stateNames)
}

// Period is the part of the day a patient prefers. The zero value means no choice yet.
type Period string

const (
	PeriodMorning   Period = "manhã"
	PeriodAfternoon Period = "tarde"
)

// Session is the per-user conversation record.
type Session struct {
	UserID      string    `json:"user_id"`
	State       State     `json:"state"`
	Period      Period    `json:"period,omitempty"`
	SlotChoice  string    `json:"slot_choice,omitempty"`
	PatientName string    `json:"patient_name,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewSession returns a fresh session in the menu state.
func NewSession(userID string) Session {
	return Session{UserID: userID, State: StateMenu}
}

// Reset clears every optional field and returns the session to the menu.
func (s Session) Reset() Session {
	return Session{UserID: s.UserID, State: StateMenu, UpdatedAt: s.UpdatedAt}
}

// LeadRecord is a confirmed booking handed to a lead sink.
type LeadRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	UserID      string    `json:"user_id"`
	RawSender   string    `json:"from"`
	PatientName string    `json:"name"`
	Period      Period    `json:"period"`
	SlotChoice  string    `json:"slot"`
	Channel     string    `json:"channel"`
}

// SlotCatalog maps a period to its two human-readable slot labels.
type SlotCatalog map[Period][2]string

// DefaultSlotCatalog is the demo fixture the clinic ships with.
func DefaultSlotCatalog() SlotCatalog {
	return SlotCatalog{
		PeriodMorning:   {"Terça 09:30 – Dra. Ana", "Quinta 10:15 – Dr. Paulo"},
		PeriodAfternoon: {"Quarta 15:00 – Dra. Ana", "Sexta 16:30 – Dr. Paulo"},
	}
}

// Slot returns the label for a 1-based choice within the period.
func (c SlotCatalog) Slot(p Period, choice int) (string, bool) {
	slots, ok := c[p]
	if !ok || choice < 1 || choice > len(slots) {
		return "", false
	}
	label := slots[choice-1]
	return label, label != ""
}
