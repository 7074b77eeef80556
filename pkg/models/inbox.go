package models

// InboxSettings holds per-user out-of-office configuration. Read-only to the
// dispatch workflow; mutated only via the inbox settings API.
type InboxSettings struct {
	UserID             string `json:"user_id"`
	OutOfOfficeEnabled bool   `json:"out_of_office_enabled"`
	// Active date range (ns). Zero means open-ended on that side.
	FirstDate int64  `json:"first_date,omitempty"`
	LastDate  int64  `json:"last_date,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Message   string `json:"message,omitempty"`
	// Signature appending is a per-setting opt-in, additionally gated by the
	// root account's signature feature
	UseSignature bool   `json:"use_signature,omitempty"`
	Signature    string `json:"signature,omitempty"`
	UpdatedTS    int64  `json:"updated_ts,omitempty"`
}

// ActiveOn reports whether the out-of-office window covers ts.
func (s *InboxSettings) ActiveOn(ts int64) bool {
	if !s.OutOfOfficeEnabled {
		return false
	}
	if s.FirstDate != 0 && ts < s.FirstDate {
		return false
	}
	if s.LastDate != 0 && ts > s.LastDate {
		return false
	}
	return true
}

// AutoReplyRecord is the most recent automated reply sent for an
// (author, recipient) pair. SettingsHash snapshots the recipient's
// out-of-office settings at send time.
type AutoReplyRecord struct {
	Author       string `json:"author"`
	Recipient    string `json:"recipient"`
	SettingsHash string `json:"settings_hash"`
	Conversation string `json:"conversation,omitempty"`
	SentTS       int64  `json:"sent_ts"`
}
