package dialogue

import (
	"regexp"
	"strings"
)

type intent uint8

const (
	intentUnknown intent = iota
	intentReset
	intentHandoff
	intentBook
	intentCoverage
	intentCare
	intentAttendant
	intentYes
	intentNo
	intentMorning
	intentAfternoon
	intentSlotOne
	intentSlotTwo
	intentConfirm
	intentReschedule
	intentCancel
)

// matcher tests already-normalized (trimmed, lower-cased) input.
type matcher func(normalized string) bool

type rule struct {
	intent intent
	match  matcher
}

func exact(words ...string) matcher {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return func(normalized string) bool {
		_, ok := set[normalized]
		return ok
	}
}

func contains(terms ...string) matcher {
	return func(normalized string) bool {
		for _, t := range terms {
			if strings.Contains(normalized, t) {
				return true
			}
		}
		return false
	}
}

func pattern(expr string) matcher {
	re := regexp.MustCompile(expr)
	return re.MatchString
}

// globalRules run before any state handling, in order.
var globalRules = []rule{
	{intentReset, exact("menu", "0")},
	{intentHandoff, contains("atendente", "humano")},
}

// stateRules lists each state's branches in priority order; first match wins.
var stateRules = map[State][]rule{
	StateMenu: {
		{intentBook, exact("1", "agendar", "agenda")},
		{intentCoverage, exact("2", "convenios", "convenio", "convênios", "convênio", "convênio/valores", "convênios/valores")},
		{intentCare, exact("3", "pré", "pre", "pre/pós", "pré/pós", "orientações", "orientacoes")},
		{intentAttendant, exact("4", "atendente")},
	},
	StateCoverageYesNo: {
		{intentYes, exact("sim", "s", "quero", "ok", "yes")},
		{intentNo, exact("nao", "não", "n", "no")},
	},
	StateAskPeriod: {
		{intentMorning, pattern(`manh(a|ã)`)},
		{intentAfternoon, pattern(`tarde`)},
	},
	StatePickSlot: {
		{intentSlotOne, exact("1")},
		{intentSlotTwo, exact("2")},
	},
	StateConfirm: {
		{intentConfirm, exact("confirmar")},
		{intentReschedule, exact("reagendar")},
		{intentCancel, exact("cancelar")},
	},
}

func classify(rules []rule, normalized string) intent {
	for _, r := range rules {
		if r.match(normalized) {
			return r.intent
		}
	}
	return intentUnknown
}

// normalize trims and case-folds inbound text for keyword matching.
func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
