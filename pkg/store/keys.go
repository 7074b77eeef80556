package store

import "fmt"

// Key layout:
//   conv:<id>                      conversation metadata
//   conv:<id>:msg:<ts>-<seq>       messages, sortable by insertion time
//   user:<id> course:<id> group:<id> account:<id>   directory records
//   inbox:<user_id>                out-of-office settings
//   autoreply:<author>:<recipient> last automated reply record

// ConvKey returns the metadata key for a conversation.
func ConvKey(convID string) string { return "conv:" + convID }

// MsgPrefix returns the key prefix under which a conversation's messages live.
func MsgPrefix(convID string) string { return "conv:" + convID + ":msg:" }

// MsgKey builds a sortable message key from timestamp and sequence.
func MsgKey(convID string, ts int64, seq uint64) string {
	return fmt.Sprintf("conv:%s:msg:%020d-%06d", convID, ts, seq)
}

// UserKey returns the directory key for a user.
func UserKey(id string) string { return "user:" + id }

// CourseKey returns the directory key for a course.
func CourseKey(id string) string { return "course:" + id }

// GroupKey returns the directory key for a group.
func GroupKey(id string) string { return "group:" + id }

// AccountKey returns the directory key for an account.
func AccountKey(id string) string { return "account:" + id }

// MediaKey returns the key for a media object, indexed by (id, type).
func MediaKey(id, mediaType string) string { return "media:" + id + ":" + mediaType }

// InboxKey returns the key for a user's inbox settings.
func InboxKey(userID string) string { return "inbox:" + userID }

// AutoReplyKey returns the key of the last automated reply record for an
// (author, recipient) pair.
func AutoReplyKey(author, recipient string) string {
	return "autoreply:" + author + ":" + recipient
}
