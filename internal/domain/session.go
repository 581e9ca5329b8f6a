package domain

import "time"

// State is a conversation state. The order of the constants is the order
// in which the facts are requested.
type State string

const (
	StateWaitImage   State = "WAIT_IMAGE"
	StateWaitDays    State = "WAIT_DAYS"
	StateWaitProduct State = "WAIT_PRODUCT"
	StateConfirm     State = "CONFIRM"
)

// Field names a draft fact. The values double as the wire names.
type Field string

const (
	FieldExpiresOn Field = "validade"
	FieldLeadDays  Field = "diasAntes"
	FieldProduct   Field = "produto"
)

// MaxLeadDays bounds the lead-time in days.
const MaxLeadDays = 3650

// Fields is a partial set of reminder facts. It is both the draft held by
// a session and the result of one extraction. Empty strings and a nil
// LeadDays mean absent.
type Fields struct {
	Product   string `json:"produto,omitempty"`
	ExpiresOn string `json:"validade,omitempty"`
	LeadDays  *int   `json:"diasAntes,omitempty"`
}

// Has reports whether f is set.
func (d Fields) Has(f Field) bool {
	switch f {
	case FieldProduct:
		return d.Product != ""
	case FieldExpiresOn:
		return d.ExpiresOn != ""
	case FieldLeadDays:
		return d.LeadDays != nil
	}
	return false
}

// Empty reports whether no field is set.
func (d Fields) Empty() bool {
	return !d.Has(FieldProduct) && !d.Has(FieldExpiresOn) && !d.Has(FieldLeadDays)
}

// Complete reports whether every field is set.
func (d Fields) Complete() bool {
	return d.Has(FieldProduct) && d.Has(FieldExpiresOn) && d.Has(FieldLeadDays)
}

// Days returns a pointer to n, for building Fields literals.
func Days(n int) *int {
	return &n
}

// Session tracks one in-progress reminder conversation.
type Session struct {
	ID        string          `json:"id"`
	Key       ConversationKey `json:"key"`
	State     State           `json:"state"`
	Draft     Fields          `json:"draft"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Reminder is a committed expiry reminder.
type Reminder struct {
	ID        string     `json:"id"`
	ChatID    string     `json:"chatId"`
	Product   string     `json:"produto"`
	ExpiresOn string     `json:"validade"`
	LeadDays  int        `json:"diasAntes"`
	CreatedAt time.Time  `json:"createdAt"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
}

// Sent reports whether the notification has already fired.
func (r Reminder) Sent() bool {
	return r.SentAt != nil
}
