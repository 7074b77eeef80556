package models

type Conversation struct {
	ID string `json:"id"`
	// Context is a normalized context code ("course_12", "group_7", "account_1")
	Context string `json:"context,omitempty"`
	// Subject is optional; auto-reply conversations set it from inbox settings
	Subject      string   `json:"subject,omitempty"`
	Participants []string `json:"participants"`
	Tags         []string `json:"tags,omitempty"`
	// Private conversations have a fixed participant set; group conversations
	// may grow via added recipients
	Private bool `json:"private,omitempty"`
	// LockedFor lists user ids that may no longer reply
	LockedFor []string `json:"locked_for,omitempty"`
	// MessageCount is the number of persisted messages (preview messages excluded)
	MessageCount int   `json:"message_count,omitempty"`
	CreatedTS    int64 `json:"created_ts,omitempty"`
	UpdatedTS    int64 `json:"updated_ts,omitempty"`
}

// HasParticipant reports whether the user is part of this conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// LockedForUser reports whether replies are locked for the given user.
func (c *Conversation) LockedForUser(userID string) bool {
	for _, u := range c.LockedFor {
		if u == userID {
			return true
		}
	}
	return false
}
