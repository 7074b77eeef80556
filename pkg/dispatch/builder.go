package dispatch

import (
	"time"

	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/store"
	"inboxd/pkg/utils"
)

// BuildMessage assembles the payload later persisted as a message. The media
// placeholder creation is its only side effect and is idempotent on repeated
// identical (id, type) pairs.
func BuildMessage(req *Request, conv *models.Conversation, rootAccount string) (models.Message, error) {
	msg := models.Message{
		ID:            utils.GenMessageID(),
		Author:        req.Actor,
		TS:            time.Now().UTC().UnixNano(),
		Body:          req.Body,
		AttachmentIDs: append([]string(nil), req.AttachmentIDs...),
		Automated:     req.Automated,
	}
	if conv != nil {
		msg.Conversation = conv.ID
	}

	if len(req.ForwardedIDs) > 0 {
		fwd, err := validateForwarded(req, conv)
		if err != nil {
			return models.Message{}, err
		}
		msg.ForwardedIDs = fwd
	}

	if req.Media != nil && req.Media.ID != "" {
		if err := ensureMediaObject(req.Media, req.Actor, rootAccount); err != nil {
			return models.Message{}, err
		}
		msg.Media = &models.MediaRef{ID: req.Media.ID, Type: req.Media.Type}
	}
	return msg, nil
}

// validateForwarded checks that every referenced message belongs to the
// targeted conversation and was written by a current participant.
func validateForwarded(req *Request, conv *models.Conversation) ([]string, error) {
	if conv == nil {
		return nil, ErrInvalidMessageForConversation()
	}
	msgs, err := store.ListMessages(conv.ID)
	if err != nil {
		return nil, ErrInvalidMessageForConversation()
	}
	byID := make(map[string]models.Message, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}
	out := make([]string, 0, len(req.ForwardedIDs))
	for _, id := range req.ForwardedIDs {
		m, ok := byID[id]
		if !ok {
			return nil, ErrInvalidMessageForConversation()
		}
		if !conv.HasParticipant(m.Author) {
			return nil, ErrInvalidMessageParticipant()
		}
		out = append(out, id)
	}
	return out, nil
}

// ensureMediaObject creates a placeholder media object when none exists for
// the (id, type) pair.
func ensureMediaObject(ref *models.MediaRef, owner, rootAccount string) error {
	if _, err := store.GetMediaObject(ref.ID, ref.Type); err == nil {
		return nil
	}
	obj := models.MediaObject{
		ID:          ref.ID,
		Type:        ref.Type,
		Owner:       owner,
		RootAccount: rootAccount,
		Placeholder: true,
		CreatedTS:   time.Now().UTC().UnixNano(),
	}
	if err := store.SaveMediaObject(obj); err != nil {
		return err
	}
	logger.Info("media_placeholder_created", "media_id", ref.ID, "media_type", ref.Type, "owner", owner)
	return nil
}
