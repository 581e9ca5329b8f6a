// Package textnorm folds user text into a comparable form: lower case,
// trimmed, with diacritics removed ("Março" -> "marco", "não" -> "nao").
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold removes combining marks from s. Transformers are stateful, so a
// fresh chain is built per call.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Key lower-cases, folds and trims s, collapsing inner whitespace.
func Key(s string) string {
	return strings.Join(strings.Fields(Fold(strings.ToLower(s))), " ")
}

// Command reduces a short reply to a bare command word: Key plus any
// leading slash and trailing punctuation removed ("/Cancelar!" -> "cancelar").
func Command(s string) string {
	k := Key(s)
	k = strings.TrimPrefix(k, "/")
	return strings.TrimRightFunc(k, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}
