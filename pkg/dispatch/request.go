package dispatch

import "inboxd/pkg/models"

// Request carries everything a single send needs. No ambient state: the HTTP
// layer and the auto-reply responder both construct one of these explicitly.
type Request struct {
	// Actor is the sending user id.
	Actor string `json:"actor"`
	// RawRecipients holds user ids and context codes as submitted.
	RawRecipients []string `json:"raw_recipients"`
	// Context is an optional context code scoping the send.
	Context string `json:"context,omitempty"`
	// ConversationID targets an existing conversation; empty starts a new one.
	ConversationID string `json:"conversation_id,omitempty"`

	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
	// Tags supplied explicitly by the caller, merged with inferred ones.
	Tags []string `json:"tags,omitempty"`

	AttachmentIDs []string         `json:"attachment_ids,omitempty"`
	ForwardedIDs  []string         `json:"forwarded_ids,omitempty"`
	Media         *models.MediaRef `json:"media,omitempty"`

	// Automated marks out-of-office replies; they never trigger further
	// auto-replies.
	Automated bool `json:"automated,omitempty"`
	// GroupConversation requests a new non-private conversation.
	GroupConversation bool `json:"group_conversation,omitempty"`
	// BulkMessage marks a send addressed to each member individually; it
	// relaxes the refusal to open a new group conversation against a
	// non-collaborative group.
	BulkMessage bool `json:"bulk_message,omitempty"`
	// Strict is false when the actor holds a site-admin send grant; non-strict
	// resolution skips the shared-context visibility requirement.
	Strict bool `json:"strict,omitempty"`
}
