package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var saoPaulo = time.FixedZone("BRT", -3*60*60)

// fixed returns a normalizer whose clock reads the given instant.
func fixed(now time.Time) *Normalizer {
	n := New(saoPaulo)
	n.Now = func() time.Time { return now }
	return n
}

func TestNormalize(t *testing.T) {
	n := fixed(time.Date(2026, 3, 15, 12, 0, 0, 0, saoPaulo))

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"year first dash", "2026-01-10", "2026-01-10"},
		{"year first slash", "2026/1/10", "2026-01-10"},
		{"year first dot", "2026.01.10", "2026-01-10"},
		{"day first slash", "10/01/2026", "2026-01-10"},
		{"day first dash", "10-01-2026", "2026-01-10"},
		{"day first dot", "10.01.2026", "2026-01-10"},
		{"day first two digit year", "10/01/26", "2026-01-10"},
		{"spelled", "10 de janeiro de 2026", "2026-01-10"},
		{"spelled capitalized", "10 de Janeiro de 2026", "2026-01-10"},
		{"abbreviated", "10 jan 2026", "2026-01-10"},
		{"abbreviated with dot", "10 jan. 2026", "2026-01-10"},
		{"abbreviated slash", "10/jan/2026", "2026-01-10"},
		{"accented month", "5 de março de 2027", "2027-03-05"},
		{"unaccented month", "5 de marco de 2027", "2027-03-05"},
		{"embedded in sentence", "o leite vence em 10/01/2026, obrigado", "2026-01-10"},
		{"label prefix", "VAL: 2026-01-10", "2026-01-10"},
		{"invalid day of month", "31/02/2026", ""},
		{"invalid month", "10/13/2026", ""},
		{"year out of range", "10/01/1900", ""},
		{"non leap feb 29", "29/02/2027", ""},
		{"leap feb 29", "29/02/2028", "2028-02-29"},
		{"century non leap", "29/02/2100", ""},
		{"empty", "", ""},
		{"blank", "   ", ""},
		{"no date", "leite integral", ""},
		{"bare number", "7", ""},
		{"unknown month word", "10 de foo de 2026", ""},
		{"count before spelled date", "1 ovo 10 de janeiro de 2026", "2026-01-10"},
		{"two different dates", "10/01/2026 ou 20/01/2026", ""},
		{"same date twice", "10/01/2026 (10 jan 2026)", "2026-01-10"},
		{"fabrication and expiry", "FAB 01/2026 VAL 10/01/2027", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.input))
		})
	}
}

func TestNormalize_LeadTimeAfterMonth(t *testing.T) {
	n := fixed(time.Date(2026, 10, 15, 12, 0, 0, 0, saoPaulo))

	tests := []struct {
		input string
		want  string
	}{
		{"10 de janeiro 15 dias antes", "2027-01-10"},
		{"10 jan 30 dias", "2027-01-10"},
		{"10 de janeiro de 15 dias antes", "2027-01-10"},
		{"10/jan/15 dias", "2027-01-10"},
		{"vence em março 15 dias antes", ""},
		{"março/15 dias", ""},
		{"10 de dezembro 1 dia antes", "2026-12-10"},
		{"10 de janeiro de 2027, 15 dias antes", "2027-01-10"},
		{"10 jan 27", "2027-01-10"},
		{"10/jan/28", "2028-01-10"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.input))
		})
	}
}

func TestNormalize_FormatIndependence(t *testing.T) {
	n := fixed(time.Date(2026, 3, 15, 12, 0, 0, 0, saoPaulo))

	inputs := []string{
		"2026-07-04", "2026/07/04", "2026.7.4",
		"04/07/2026", "4-7-2026", "04.07.26",
		"4 de julho de 2026", "04 jul 2026", "4 julho 2026", "4/jul/26",
	}
	for _, in := range inputs {
		assert.Equal(t, "2026-07-04", n.Normalize(in), in)
	}
}

func TestNormalize_MonthYear(t *testing.T) {
	n := fixed(time.Date(2026, 3, 15, 12, 0, 0, 0, saoPaulo))

	tests := []struct {
		input string
		last  string
		first string
	}{
		{"03/2026", "2026-03-31", "2026-03-01"},
		{"02/2028", "2028-02-29", "2028-02-01"},
		{"02/2027", "2027-02-28", "2027-02-01"},
		{"mar/2026", "2026-03-31", "2026-03-01"},
		{"março de 2026", "2026-03-31", "2026-03-01"},
		{"abr/27", "2027-04-30", "2027-04-01"},
		{"abr.27", "2027-04-30", "2027-04-01"},
		{"abr de 27", "2027-04-30", "2027-04-01"},
		{"abr 27", "", ""},
		{"13/2026", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.last, n.Normalize(tt.input))
			assert.Equal(t, tt.last, n.NormalizeMonthYear(tt.input, LastDay))
			assert.Equal(t, tt.first, n.NormalizeMonthYear(tt.input, FirstDay))
		})
	}
}

func TestNormalize_YearInference(t *testing.T) {
	n := fixed(time.Date(2026, 3, 15, 12, 0, 0, 0, saoPaulo))

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"later this year", "10/04", "2026-04-10"},
		{"today", "15/03", "2026-03-15"},
		{"yesterday rolls over", "14/03", "2027-03-14"},
		{"earlier month rolls over", "10/01", "2027-01-10"},
		{"spelled without year", "10 de janeiro", "2027-01-10"},
		{"spelled later", "20 de dezembro", "2026-12-20"},
		{"feb 29 in non leap inferred year", "29/02", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.input))
		})
	}
}

func TestNormalize_YearInferenceUsesReferenceZone(t *testing.T) {
	// 02:00 UTC on March 15 is still March 14 in the reference zone.
	n := fixed(time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-03-14", n.Normalize("14/03"))

	n.Location = time.UTC
	assert.Equal(t, "2027-03-14", n.Normalize("14/03"))
}

func TestNormalize_InvalidNumericDoesNotFallThrough(t *testing.T) {
	n := fixed(time.Date(2026, 3, 15, 12, 0, 0, 0, saoPaulo))

	assert.Equal(t, "", n.Normalize("31/02/2026"))
	assert.Equal(t, "", n.Normalize("2026-02-30"))
	assert.Equal(t, "", n.Normalize("31 de fevereiro de 2026"))
}

func TestFromParts(t *testing.T) {
	n := fixed(time.Date(2026, 3, 15, 12, 0, 0, 0, saoPaulo))

	assert.Equal(t, "2026-01-10", n.FromParts(10, 1, 2026))
	assert.Equal(t, "2026-01-10", n.FromParts(10, 1, 26))
	assert.Equal(t, "2027-01-10", n.FromParts(10, 1, 0))
	assert.Equal(t, "", n.FromParts(31, 4, 2026))
	assert.Equal(t, "", n.FromParts(0, 1, 2026))
	assert.Equal(t, "", n.FromParts(1, 0, 2026))
	assert.Equal(t, "", n.FromParts(-1, -1, -1))
}

func TestCandidates(t *testing.T) {
	n := fixed(time.Date(2026, 3, 15, 12, 0, 0, 0, saoPaulo))

	got := n.Candidates("FAB: 01/2026 LOTE 123 VAL: 10/01/2027")
	require.Len(t, got, 2)
	assert.Equal(t, "2027-01-10", got[0].String())
	assert.Equal(t, "2026-01-31", got[1].String())

	latest, ok := Latest(got)
	require.True(t, ok)
	assert.Equal(t, "2027-01-10", latest.String())

	assert.Empty(t, n.Candidates("sem datas aqui"))
}

func TestDate(t *testing.T) {
	d := Date{Year: 2026, Month: time.January, Day: 10}

	assert.Equal(t, "2026-01-10", d.String())
	assert.Equal(t, "10/01/2026", d.Display())
	assert.False(t, d.IsZero())
	assert.True(t, Date{}.IsZero())
	assert.Equal(t, Date{Year: 2026, Month: time.January, Day: 3}, d.AddDays(-7))
	assert.Equal(t, Date{Year: 2025, Month: time.December, Day: 31}, d.AddDays(-10))
	assert.True(t, d.AddDays(-1).Before(d))
	assert.False(t, d.Before(d))

	at := d.At(saoPaulo, 9, 30)
	assert.Equal(t, time.Date(2026, 1, 10, 12, 30, 0, 0, time.UTC), at.UTC())
}

func TestParse(t *testing.T) {
	d, ok := Parse("2028-02-29")
	require.True(t, ok)
	assert.Equal(t, Date{Year: 2028, Month: time.February, Day: 29}, d)

	for _, bad := range []string{"", "2027-02-29", "10/01/2026", "2026-1-10", "2026-01-10T00:00"} {
		_, ok := Parse(bad)
		assert.False(t, ok, bad)
	}
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 31, DaysIn(time.January, 2026))
	assert.Equal(t, 28, DaysIn(time.February, 2026))
	assert.Equal(t, 29, DaysIn(time.February, 2024))
	assert.Equal(t, 29, DaysIn(time.February, 2000))
	assert.Equal(t, 28, DaysIn(time.February, 1900))
	assert.Equal(t, 30, DaysIn(time.April, 2026))
	assert.Equal(t, 0, DaysIn(13, 2026))
}
