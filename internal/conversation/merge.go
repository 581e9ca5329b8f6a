// Package conversation collects reminder facts from a chat one message at
// a time and hands complete, confirmed drafts to the reminder scheduler.
package conversation

import "github.com/soyeahso/validade/internal/domain"

// Merge copies each field of ext into draft only where draft has none and
// returns the fields it filled, in date, lead-time, product order. A nil
// ext fills nothing.
func Merge(draft *domain.Fields, ext *domain.Fields) []domain.Field {
	if draft == nil || ext == nil {
		return nil
	}
	var filled []domain.Field
	if draft.ExpiresOn == "" && ext.ExpiresOn != "" {
		draft.ExpiresOn = ext.ExpiresOn
		filled = append(filled, domain.FieldExpiresOn)
	}
	if draft.LeadDays == nil && ext.LeadDays != nil {
		draft.LeadDays = domain.Days(*ext.LeadDays)
		filled = append(filled, domain.FieldLeadDays)
	}
	if draft.Product == "" && ext.Product != "" {
		draft.Product = ext.Product
		filled = append(filled, domain.FieldProduct)
	}
	return filled
}

// NextState returns the state that asks for the first missing fact.
func NextState(draft domain.Fields) domain.State {
	switch {
	case !draft.Has(domain.FieldExpiresOn):
		return domain.StateWaitImage
	case !draft.Has(domain.FieldLeadDays):
		return domain.StateWaitDays
	case !draft.Has(domain.FieldProduct):
		return domain.StateWaitProduct
	default:
		return domain.StateConfirm
	}
}
