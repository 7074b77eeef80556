package utils

import "github.com/google/uuid"

// GenMessageID returns a new unique message id.
func GenMessageID() string { return "msg-" + uuid.NewString() }

// GenConversationID returns a new unique conversation id.
func GenConversationID() string { return "conv-" + uuid.NewString() }
