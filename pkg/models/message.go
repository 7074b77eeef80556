package models

type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Author       string `json:"author,omitempty"`
	TS           int64  `json:"ts"`
	Body         string `json:"body,omitempty"`
	// Attachment and forwarded-message references are ids into external stores
	AttachmentIDs []string `json:"attachment_ids,omitempty"`
	ForwardedIDs  []string `json:"forwarded_ids,omitempty"`
	// Optional media-comment reference; resolved to a MediaObject on build
	Media *MediaRef `json:"media,omitempty"`
	// Automated marks out-of-office auto-replies
	Automated bool `json:"automated,omitempty"`
}

type MediaRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}
