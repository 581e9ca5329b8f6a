package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/validade/internal/textnorm"
)

// MonthResolution picks the day used for month/year-only input.
type MonthResolution int

const (
	// LastDay resolves "03/2026" to 2026-03-31, the usual label semantics.
	LastDay MonthResolution = iota
	// FirstDay resolves "03/2026" to 2026-03-01.
	FirstDay
)

var monthNames = map[string]time.Month{
	"janeiro": time.January, "fevereiro": time.February, "marco": time.March,
	"abril": time.April, "maio": time.May, "junho": time.June,
	"julho": time.July, "agosto": time.August, "setembro": time.September,
	"outubro": time.October, "novembro": time.November, "dezembro": time.December,
}

var monthAbbrevs = map[string]time.Month{
	"jan": time.January, "fev": time.February, "mar": time.March,
	"abr": time.April, "mai": time.May, "jun": time.June,
	"jul": time.July, "ago": time.August, "set": time.September,
	"out": time.October, "nov": time.November, "dez": time.December,
}

// lookupMonth resolves a folded, lower-case month word.
func lookupMonth(word string) (time.Month, bool) {
	if m, ok := monthNames[word]; ok {
		return m, true
	}
	m, ok := monthAbbrevs[word]
	return m, ok
}

// yearAfterMonth is the year following a month word, in three
// alternative groups: a two- or four-digit year joined by "de", a dash,
// a slash or a dot, or a four-digit year after plain whitespace. A bare "jan 30" is a month and a count,
// not January 2030.
const yearAfterMonth = `\.?\s*(?:de\s+|[-/]\s*)(\d{4}|\d{2})\b|\s*\.\s*(\d{4}|\d{2})\b|\.?\s+(\d{4})\b`

// Patterns run against folded lower-case text, in priority order.
var (
	yearFirstRe = regexp.MustCompile(`\b(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})\b`)
	dayFirstRe  = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4}|\d{2})\b`)
	spelledRe   = regexp.MustCompile(`\b(\d{1,2})\s*(?:de\s+|[-/.]\s*)?([a-z]{3,9})(?:` + yearAfterMonth + `|\.)?`)
	monthNumRe  = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{4})\b`)
	monthWordRe = regexp.MustCompile(`\b([a-z]{3,9})(?:` + yearAfterMonth + `)`)
	dayMonthRe  = regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})\b`)
)

// Normalizer parses date fragments. Location is the reference timezone
// for year inference; Now defaults to time.Now.
type Normalizer struct {
	Location *time.Location
	Now      func() time.Time
}

// New returns a Normalizer for the given reference timezone.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{Location: loc, Now: time.Now}
}

// Normalize returns the canonical date found in fragment, or "" when the
// fragment holds no valid date or two different ones. Month/year-only
// input resolves to the last day of the month.
func (n *Normalizer) Normalize(fragment string) string {
	return n.NormalizeMonthYear(fragment, LastDay)
}

// NormalizeMonthYear is Normalize with an explicit month/year resolution.
func (n *Normalizer) NormalizeMonthYear(fragment string, res MonthResolution) string {
	found := n.scan(fragment, res)
	if len(found) == 0 {
		return ""
	}
	for _, d := range found[1:] {
		if d != found[0] {
			return ""
		}
	}
	return found[0].String()
}

// Candidates returns every valid date in text, highest priority form first.
func (n *Normalizer) Candidates(text string) []Date {
	return n.scan(text, LastDay)
}

// FromParts validates a structured day/month/year triple. A zero year is
// inferred; two-digit years are taken as 20YY.
func (n *Normalizer) FromParts(day, month, year int) string {
	d, ok := n.build(day, month, year)
	if !ok {
		return ""
	}
	return d.String()
}

func (n *Normalizer) build(day, month, year int) (Date, bool) {
	switch {
	case year == 0:
		year = n.inferYear(day, month)
	case year < 100 && year > 0:
		year += 2000
	}
	if !Valid(year, month, day) {
		return Date{}, false
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, true
}

// inferYear uses the current year unless day/month already passed in the
// reference timezone.
func (n *Normalizer) inferYear(day, month int) int {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	today := Today(now(), n.Location)
	if time.Month(month) < today.Month || (time.Month(month) == today.Month && day < today.Day) {
		return today.Year + 1
	}
	return today.Year
}

type span struct{ start, end int }

type scanner struct {
	text  string
	taken []span
	out   []Date
}

func (s *scanner) free(lo, hi int) bool {
	for _, t := range s.taken {
		if lo < t.end && t.start < hi {
			return false
		}
	}
	return true
}

func (s *scanner) claim(lo, hi int) {
	s.taken = append(s.taken, span{lo, hi})
}

// group returns the text of submatch i, or "".
func group(text string, m []int, i int) string {
	if m[2*i] < 0 {
		return ""
	}
	return text[m[2*i]:m[2*i+1]]
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return v
}

// scan collects dates by form priority. A numeric match claims its span
// even when invalid so a lower-priority form cannot reinterpret part of a
// rejected date ("31/02/2026" must not become "02/2026").
func (n *Normalizer) scan(fragment string, res MonthResolution) []Date {
	s := &scanner{text: textnorm.Fold(strings.ToLower(fragment))}
	if strings.TrimSpace(s.text) == "" {
		return nil
	}

	for _, m := range yearFirstRe.FindAllStringSubmatchIndex(s.text, -1) {
		if !s.free(m[0], m[1]) {
			continue
		}
		s.claim(m[0], m[1])
		if date, ok := dateOf(atoi(group(s.text, m, 1)), atoi(group(s.text, m, 2)), atoi(group(s.text, m, 3))); ok {
			s.out = append(s.out, date)
		}
	}

	for _, m := range dayFirstRe.FindAllStringSubmatchIndex(s.text, -1) {
		if !s.free(m[0], m[1]) {
			continue
		}
		s.claim(m[0], m[1])
		y := explicitYear(group(s.text, m, 3))
		if date, ok := dateOf(y, atoi(group(s.text, m, 2)), atoi(group(s.text, m, 1))); ok {
			s.out = append(s.out, date)
		}
	}

	eachMatch(spelledRe, s.text, func(m []int) int {
		month, ok := lookupMonth(group(s.text, m, 2))
		if !ok {
			// Resume after the word so its trailing digits can start a date.
			return m[5]
		}
		if !s.free(m[0], m[1]) {
			return m[1]
		}
		s.claim(m[0], m[1])
		day := atoi(group(s.text, m, 1))
		var date Date
		if yStr, end := yearGroup(s.text, m, 3); yStr != "" && !countsDays(s.text, end) {
			date, ok = dateOf(explicitYear(yStr), int(month), day)
		} else {
			date, ok = n.build(day, int(month), 0)
		}
		if ok {
			s.out = append(s.out, date)
		}
		return m[1]
	})

	for _, m := range monthNumRe.FindAllStringSubmatchIndex(s.text, -1) {
		if !s.free(m[0], m[1]) {
			continue
		}
		s.claim(m[0], m[1])
		if date, ok := monthYear(atoi(group(s.text, m, 1)), atoi(group(s.text, m, 2)), res); ok {
			s.out = append(s.out, date)
		}
	}

	eachMatch(monthWordRe, s.text, func(m []int) int {
		month, ok := lookupMonth(group(s.text, m, 1))
		if !ok {
			return m[3]
		}
		yStr, end := yearGroup(s.text, m, 2)
		if countsDays(s.text, end) {
			return m[3]
		}
		if s.free(m[0], m[1]) {
			s.claim(m[0], m[1])
			if date, ok := monthYear(int(month), explicitYear(yStr), res); ok {
				s.out = append(s.out, date)
			}
		}
		return m[1]
	})

	for _, m := range dayMonthRe.FindAllStringSubmatchIndex(s.text, -1) {
		if !s.free(m[0], m[1]) || continuesNumeric(s.text, m[1]) {
			continue
		}
		s.claim(m[0], m[1])
		if date, ok := n.build(atoi(group(s.text, m, 1)), atoi(group(s.text, m, 2)), 0); ok {
			s.out = append(s.out, date)
		}
	}

	return s.out
}

// eachMatch walks matches of re in text, resuming the search wherever fn
// says instead of always after the whole match.
func eachMatch(re *regexp.Regexp, text string, fn func(m []int) int) {
	for pos := 0; pos < len(text); {
		m := re.FindStringSubmatchIndex(text[pos:])
		if m == nil {
			return
		}
		for i := range m {
			if m[i] >= 0 {
				m[i] += pos
			}
		}
		next := fn(m)
		if next <= pos {
			next = m[1]
		}
		pos = next
	}
}

// yearGroup returns the first non-empty of the three year groups that
// start at submatch first, and where it ends.
func yearGroup(text string, m []int, first int) (string, int) {
	for i := first; i < first+3; i++ {
		if y := group(text, m, i); y != "" {
			return y, m[2*i+1]
		}
	}
	return "", -1
}

// countsDays reports whether the number ending at i is a day count
// ("15 dias", "1 dia") rather than a year.
func countsDays(text string, i int) bool {
	if i < 0 {
		return false
	}
	return strings.HasPrefix(strings.TrimLeft(text[i:], " "), "dia")
}

func dateOf(year, month, day int) (Date, bool) {
	if !Valid(year, month, day) {
		return Date{}, false
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, true
}

// explicitYear reads a written year; two digits mean 20YY.
func explicitYear(s string) int {
	y := atoi(s)
	if len(s) == 2 && y >= 0 {
		y += 2000
	}
	return y
}

// continuesNumeric reports whether text carries on with another separator
// and digit at i, i.e. the match is a prefix of a longer numeric run.
func continuesNumeric(text string, i int) bool {
	if i+1 >= len(text) {
		return false
	}
	c := text[i]
	return (c == '/' || c == '-' || c == '.') && text[i+1] >= '0' && text[i+1] <= '9'
}

func monthYear(month, year int, res MonthResolution) (Date, bool) {
	if month < 1 || month > 12 || year < MinYear || year > MaxYear {
		return Date{}, false
	}
	day := 1
	if res == LastDay {
		day = DaysIn(time.Month(month), year)
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, true
}
