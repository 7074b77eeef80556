package dispatch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrConversationNotFound marks a targeted conversation id with no stored
// record. The HTTP layer maps it to a 404 rather than an infrastructure error.
var ErrConversationNotFound = errors.New("conversation not found")

// Failure kinds raised during validation. Each maps to a stable HTTP status
// and the request attribute the failure concerns.
const (
	KindRepliesLocked                 = "replies_locked"
	KindCourseConcluded               = "course_concluded"
	KindEmptyBody                     = "empty_body"
	KindTooManyParticipants           = "too_many_participants"
	KindUnauthorizedRecipients        = "unauthorized_recipients"
	KindInvalidContext                = "invalid_context"
	KindInsufficientPermissions       = "insufficient_permissions"
	KindGroupConversationNotAllowed   = "group_conversation_not_allowed"
	KindInvalidMessageForConversation = "invalid_message_for_conversation"
	KindInvalidMessageParticipant     = "invalid_message_participant"
)

// Error is a structured validation failure. Validation is fail-fast and
// synchronous; nothing in this taxonomy is retried or swallowed.
type Error struct {
	Kind      string   `json:"kind"`
	Message   string   `json:"message"`
	Status    int      `json:"status"`
	Attribute string   `json:"attribute,omitempty"`
	// Names carries offending recipient names for unauthorized-recipient
	// failures.
	Names []string `json:"names,omitempty"`
}

func (e *Error) Error() string { return e.Message }

func ErrRepliesLocked() *Error {
	return &Error{
		Kind:      KindRepliesLocked,
		Message:   "Unable to add message to conversation",
		Status:    http.StatusUnauthorized,
		Attribute: "workflow_state",
	}
}

func ErrCourseConcluded() *Error {
	return &Error{
		Kind:      KindCourseConcluded,
		Message:   "Course concluded, unable to send messages",
		Status:    http.StatusUnauthorized,
		Attribute: "workflow_state",
	}
}

func ErrEmptyBody() *Error {
	return &Error{
		Kind:      KindEmptyBody,
		Message:   "Message body cannot be blank",
		Status:    http.StatusBadRequest,
		Attribute: "empty_message",
	}
}

func ErrTooManyParticipants(cap int) *Error {
	return &Error{
		Kind:      KindTooManyParticipants,
		Message:   fmt.Sprintf("Too many participants for conversation (limit %d)", cap),
		Status:    http.StatusBadRequest,
		Attribute: "recipients",
	}
}

func ErrUnauthorizedRecipients(names []string) *Error {
	return &Error{
		Kind:      KindUnauthorizedRecipients,
		Message:   "The following recipients have no active enrollment in the course: " + strings.Join(names, ", "),
		Status:    http.StatusUnauthorized,
		Attribute: "recipients",
		Names:     names,
	}
}

func ErrInvalidContext(code string) *Error {
	return &Error{
		Kind:      KindInvalidContext,
		Message:   "Invalid context: " + code,
		Status:    http.StatusBadRequest,
		Attribute: "context_code",
	}
}

func ErrInsufficientPermissions() *Error {
	return &Error{
		Kind:      KindInsufficientPermissions,
		Message:   "Insufficient permissions for group",
		Status:    http.StatusUnauthorized,
		Attribute: "recipients",
	}
}

func ErrGroupConversationNotAllowed() *Error {
	return &Error{
		Kind:      KindGroupConversationNotAllowed,
		Message:   "Group conversation for that group not allowed",
		Status:    http.StatusBadRequest,
		Attribute: "recipients",
	}
}

func ErrInvalidMessageForConversation() *Error {
	return &Error{
		Kind:      KindInvalidMessageForConversation,
		Message:   "One or more included messages do not belong to this conversation",
		Status:    http.StatusBadRequest,
		Attribute: "included_messages",
	}
}

func ErrNotAParticipant() *Error {
	return &Error{
		Kind:      KindInvalidMessageParticipant,
		Message:   "User is not a participant in this conversation",
		Status:    http.StatusForbidden,
		Attribute: "conversation_id",
	}
}

func ErrInvalidMessageParticipant() *Error {
	return &Error{
		Kind:      KindInvalidMessageParticipant,
		Message:   "One or more included messages are not visible to the sender",
		Status:    http.StatusBadRequest,
		Attribute: "included_messages",
	}
}

// AsError unwraps a validation failure from any error, or returns nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if de, ok := err.(*Error); ok {
		return de
	}
	return nil
}
