package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/validade/internal/domain"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name   string
		draft  domain.Fields
		ext    *domain.Fields
		want   domain.Fields
		filled []domain.Field
	}{
		{
			name:  "nil extraction",
			draft: domain.Fields{Product: "Leite"},
			ext:   nil,
			want:  domain.Fields{Product: "Leite"},
		},
		{
			name:   "fills empty draft in order",
			draft:  domain.Fields{},
			ext:    &domain.Fields{Product: "Leite", ExpiresOn: "2026-01-10", LeadDays: domain.Days(7)},
			want:   domain.Fields{Product: "Leite", ExpiresOn: "2026-01-10", LeadDays: domain.Days(7)},
			filled: []domain.Field{domain.FieldExpiresOn, domain.FieldLeadDays, domain.FieldProduct},
		},
		{
			name:   "never overwrites",
			draft:  domain.Fields{ExpiresOn: "2026-01-10", LeadDays: domain.Days(3)},
			ext:    &domain.Fields{Product: "Iogurte", ExpiresOn: "2027-05-05", LeadDays: domain.Days(9)},
			want:   domain.Fields{Product: "Iogurte", ExpiresOn: "2026-01-10", LeadDays: domain.Days(3)},
			filled: []domain.Field{domain.FieldProduct},
		},
		{
			name:   "zero lead days is a value",
			draft:  domain.Fields{},
			ext:    &domain.Fields{LeadDays: domain.Days(0)},
			want:   domain.Fields{LeadDays: domain.Days(0)},
			filled: []domain.Field{domain.FieldLeadDays},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := tt.draft
			filled := Merge(&draft, tt.ext)
			assert.Equal(t, tt.filled, filled)
			assert.Equal(t, tt.want, draft)
		})
	}
}

func TestMerge_DoesNotAliasLeadDays(t *testing.T) {
	ext := &domain.Fields{LeadDays: domain.Days(7)}
	var draft domain.Fields
	Merge(&draft, ext)

	*ext.LeadDays = 99
	require.NotNil(t, draft.LeadDays)
	assert.Equal(t, 7, *draft.LeadDays)
}

func TestNextState(t *testing.T) {
	assert.Equal(t, domain.StateWaitImage, NextState(domain.Fields{}))
	assert.Equal(t, domain.StateWaitImage, NextState(domain.Fields{Product: "Leite", LeadDays: domain.Days(1)}))
	assert.Equal(t, domain.StateWaitDays, NextState(domain.Fields{ExpiresOn: "2026-01-10"}))
	assert.Equal(t, domain.StateWaitDays, NextState(domain.Fields{ExpiresOn: "2026-01-10", Product: "Leite"}))
	assert.Equal(t, domain.StateWaitProduct, NextState(domain.Fields{ExpiresOn: "2026-01-10", LeadDays: domain.Days(0)}))
	assert.Equal(t, domain.StateConfirm, NextState(domain.Fields{ExpiresOn: "2026-01-10", LeadDays: domain.Days(0), Product: "Leite"}))
}
