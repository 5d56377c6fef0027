package dialogue

import (
	"fmt"
	"strings"
)

const (
	replyAskPeriod          = "Perfeito! ✨ Prefere *manhã* ou *tarde*?"
	replyCoverageAskPeriod  = "Ótimo! Para avaliação pelo convênio, prefere *manhã* ou *tarde*?"
	replyCoverageDeclined   = "Sem problemas! Quando quiser, digite *menu* para começar de novo."
	replyCoverageReprompt   = "Responda *sim* para agendar avaliação pelo convênio, ou *não* para voltar."
	replyPeriodReprompt     = "Para continuar, responda *manhã* ou *tarde* 😉"
	replySlotReprompt       = "Responda *1* ou *2* para escolher o horário."
	replyAskName            = "Perfeito! Para finalizar, me diga seu *nome completo*."
	replyNameReprompt       = "Pode enviar seu *nome completo*, por favor?"
	replyConfirmed          = "🎉 Confirmado! Vamos enviar as instruções de pré-consulta. Se precisar, digite *menu*."
	replyReschedule         = "Sem problemas! Prefere *manhã* ou *tarde*?"
	replyCancelled          = "Ok, agenda cancelada. Se quiser começar de novo, digite *menu*."
	replyConfirmReprompt    = "Responda *confirmar*, *reagendar* ou *cancelar* 🙂"
	replyCareInstructions   = "Pré-limpeza: escove normalmente, evite café/vinho 3h antes, traga documento e carteirinha. Quer agendar? Digite *1* (Agendar) ou *menu*."
	replyHandoffWithoutLink = "Claro! Vou avisar um atendente para te chamar em instantes."
)

func menuText(clinicName string) string {
	return strings.Join([]string{
		fmt.Sprintf("Olá! 😊 Sou a assistente da %s.", clinicName),
		"1) Agendar consulta",
		"2) Convênios/valores",
		"3) Orientações pré/pós",
		"4) Falar com atendente",
	}, "\n")
}

func coverageText(convenios []string) string {
	return strings.Join([]string{
		fmt.Sprintf("Convênios aceitos: %s.", strings.Join(convenios, ", ")),
		"Cobertura típica: avaliação, limpeza, restaurações simples.",
		"Quer marcar uma *avaliação* pelo convênio? Responda *sim* ou *não*.",
	}, "\n")
}

func handoffText(link string) string {
	if link == "" {
		return replyHandoffWithoutLink
	}
	return "Claro! Vou te encaminhar: " + link
}

func slotOptionsText(p Period, slots [2]string) string {
	return fmt.Sprintf("Opções (%s):\n1) %s\n2) %s\nResponda *1* ou *2*.", p, slots[0], slots[1])
}

func summaryText(s Session) string {
	return "✅ *Resumo da avaliação*\n" +
		fmt.Sprintf("• Nome: %s\n", s.PatientName) +
		fmt.Sprintf("• Período: %s\n", s.Period) +
		fmt.Sprintf("• Horário: %s\n\n", s.SlotChoice) +
		"Responda: *confirmar* | *reagendar* | *cancelar*"
}
