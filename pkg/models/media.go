package models

// MediaObject is a stored media record. Placeholders are created by the
// message builder when a media reference has no matching object yet.
type MediaObject struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"` // audio | video
	Owner       string `json:"owner,omitempty"`
	RootAccount string `json:"root_account,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
	CreatedTS   int64  `json:"created_ts,omitempty"`
}
