package conversation

import (
	"fmt"
	"strings"

	"github.com/soyeahso/validade/internal/dates"
	"github.com/soyeahso/validade/internal/domain"
)

// Replies sent to the user.
const (
	msgCancelled      = "Cadastro cancelado. Quando quiser, é só mandar a foto ou a data de validade de um produto."
	msgNothingToStart = "Não há cadastro em andamento. Mande a foto ou a data de validade de um produto para começar."
	msgDiscarded      = "Tudo bem, descartei esse lembrete."
	msgNotUnderstood  = "Não entendi."
	msgCommitFailed   = "Não consegui salvar o lembrete agora. Responda sim para tentar de novo ou cancelar para desistir."
)

// prompt asks for the fact state is waiting on.
func prompt(state domain.State, draft domain.Fields, today dates.Date) string {
	switch state {
	case domain.StateWaitImage:
		return "Envie uma foto da data de validade do produto ou digite a data (ex.: 10/01/2026)."
	case domain.StateWaitDays:
		return "Quantos dias antes da validade você quer ser avisado? (ex.: 7)"
	case domain.StateWaitProduct:
		return "Qual é o nome do produto?"
	default:
		return summary(draft, today)
	}
}

// summary lists the draft and asks for confirmation.
func summary(draft domain.Fields, today dates.Date) string {
	var b strings.Builder
	b.WriteString("Confirma o lembrete?\n")
	fmt.Fprintf(&b, "Produto: %s\n", draft.Product)
	expires, ok := dates.Parse(draft.ExpiresOn)
	if ok {
		fmt.Fprintf(&b, "Validade: %s\n", expires.Display())
	}
	if draft.LeadDays != nil {
		fmt.Fprintf(&b, "Aviso: %s", leadText(*draft.LeadDays))
		if ok {
			notify := expires.AddDays(-*draft.LeadDays)
			fmt.Fprintf(&b, " (%s)", notify.Display())
			if notify.Before(today) {
				b.WriteString("\nAtenção: essa data de aviso já passou, então não haverá notificação.")
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("Responda sim ou não.")
	return b.String()
}

func leadText(n int) string {
	switch n {
	case 0:
		return "no dia do vencimento"
	case 1:
		return "1 dia antes"
	default:
		return fmt.Sprintf("%d dias antes", n)
	}
}

// feedback acknowledges newly filled fields, one line each.
func feedback(filled []domain.Field, draft domain.Fields) string {
	lines := make([]string, 0, len(filled))
	for _, f := range filled {
		switch f {
		case domain.FieldExpiresOn:
			if d, ok := dates.Parse(draft.ExpiresOn); ok {
				lines = append(lines, "📅 Validade: "+d.Display())
			}
		case domain.FieldLeadDays:
			lines = append(lines, "⏳ Aviso: "+leadText(*draft.LeadDays))
		case domain.FieldProduct:
			lines = append(lines, "🏷️ Produto: "+draft.Product)
		}
	}
	return strings.Join(lines, "\n")
}

func committed(r domain.Reminder) string {
	when := r.ExpiresOn
	if d, ok := dates.Parse(r.ExpiresOn); ok {
		when = d.Display()
	}
	return fmt.Sprintf("✅ Lembrete salvo: %s vence em %s, aviso %s.", r.Product, when, leadText(r.LeadDays))
}
