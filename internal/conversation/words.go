package conversation

import (
	"regexp"
	"strconv"

	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/textnorm"
)

var (
	cancelWords = set("cancelar", "cancela", "cancel", "sair")
	yesWords    = set("sim", "s", "ok", "confirmar", "confirmo", "yes", "y")
	noWords     = set("nao", "n", "no")
)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// IsCancel reports whether body is a cancel command ("cancelar",
// "/cancelar", "Sair!").
func IsCancel(body string) bool {
	return cancelWords[textnorm.Command(body)]
}

// answer classifies a reply in CONFIRM.
type answer int

const (
	answerOther answer = iota
	answerYes
	answerNo
)

func classify(body string) answer {
	w := textnorm.Command(body)
	switch {
	case yesWords[w]:
		return answerYes
	case noWords[w]:
		return answerNo
	}
	return answerOther
}

var intLiteralRe = regexp.MustCompile(`-?\d+`)

// leadDaysLiteral returns the lead-time when body holds exactly one
// integer literal and it is in range ("7", "7 dias", "avisar 15 antes").
func leadDaysLiteral(body string) (int, bool) {
	found := intLiteralRe.FindAllString(body, 2)
	if len(found) != 1 {
		return 0, false
	}
	n, err := strconv.Atoi(found[0])
	if err != nil || n < 0 || n > domain.MaxLeadDays {
		return 0, false
	}
	return n, true
}
