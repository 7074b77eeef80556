package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"inboxd/pkg/auth"
	"inboxd/pkg/directory"
	"inboxd/pkg/dispatch"
	"inboxd/pkg/models"
	"inboxd/pkg/store"
	"inboxd/pkg/telemetry"
	"inboxd/pkg/utils"
	"inboxd/pkg/validation"

	"github.com/gorilla/mux"
)

var dispatcher *dispatch.Dispatcher

// RegisterConversations registers the conversation routes onto the router.
func RegisterConversations(r *mux.Router, d *dispatch.Dispatcher) {
	dispatcher = d
	r.HandleFunc("/conversations", createConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", getConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages", addConversationMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages", listConversationMessages).Methods(http.MethodGet)
}

// sendPayload is the request body shared by conversation create and message
// add.
type sendPayload struct {
	Actor             string           `json:"actor,omitempty"`
	Recipients        []string         `json:"recipients"`
	Context           string           `json:"context,omitempty"`
	Subject           string           `json:"subject,omitempty"`
	Body              string           `json:"body"`
	Tags              []string         `json:"tags,omitempty"`
	AttachmentIDs     []string         `json:"attachment_ids,omitempty"`
	ForwardedIDs      []string         `json:"forwarded_ids,omitempty"`
	Media             *models.MediaRef `json:"media,omitempty"`
	GroupConversation bool             `json:"group_conversation,omitempty"`
	BulkMessage       bool             `json:"bulk_message,omitempty"`
}

// createConversation handles POST /conversations: start a new conversation
// with its first message.
func createConversation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	telemetry.SetRequestOp(r.Context(), "dispatch.send")

	var p sendPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	dispatchSend(w, r, &p, "")
}

// addConversationMessage handles POST /conversations/{id}/messages.
func addConversationMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	telemetry.SetRequestOp(r.Context(), "dispatch.send")

	convID := mux.Vars(r)["id"]
	var p sendPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	dispatchSend(w, r, &p, convID)
}

// dispatchSend runs a payload through the dispatch pipeline and writes the
// outcome.
func dispatchSend(w http.ResponseWriter, r *http.Request, p *sendPayload, convID string) {
	actor, status, msg := auth.ResolveActorFromRequest(r, p.Actor)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}

	// config-declared shape rules run before semantic validation
	if err := validation.ValidateMessage(models.Message{Author: actor, Body: p.Body, Media: p.Media}); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := &dispatch.Request{
		Actor:             actor,
		RawRecipients:     p.Recipients,
		Context:           p.Context,
		ConversationID:    convID,
		Subject:           p.Subject,
		Body:              p.Body,
		Tags:              p.Tags,
		AttachmentIDs:     p.AttachmentIDs,
		ForwardedIDs:      p.ForwardedIDs,
		Media:             p.Media,
		GroupConversation: p.GroupConversation,
		BulkMessage:       p.BulkMessage,
		Strict:            !directory.HasSiteAdminGrant(actor),
	}

	span := telemetry.StartSpan(r.Context(), "dispatch.send")
	res, err := dispatcher.Send(req)
	span()
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	code := http.StatusOK
	if res.Status == dispatch.StatusAccepted {
		code = http.StatusAccepted
	}
	utils.JSONWrite(w, code, res)
}

// writeDispatchError maps a validation failure to its taxonomy status and
// shape; unknown conversation ids map to 404 and anything else is a 500.
func writeDispatchError(w http.ResponseWriter, err error) {
	if errors.Is(err, dispatch.ErrConversationNotFound) {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if de := dispatch.AsError(err); de != nil {
		out := struct {
			Error     string   `json:"error"`
			Attribute string   `json:"attribute,omitempty"`
			Names     []string `json:"names,omitempty"`
		}{Error: de.Message, Attribute: de.Attribute, Names: de.Names}
		utils.JSONWrite(w, de.Status, out)
		return
	}
	utils.JSONError(w, http.StatusInternalServerError, err.Error())
}

// listConversations handles GET /conversations for the verified actor.
func listConversations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	actor, status, msg := auth.ResolveActorFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	convs, err := store.ListConversations(actor)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.JSONWrite(w, http.StatusOK, struct {
		Conversations []models.Conversation `json:"conversations"`
	}{Conversations: convs})
}

// getConversation handles GET /conversations/{id}, participant gated.
func getConversation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	conv, ok := loadParticipantConversation(w, r)
	if !ok {
		return
	}
	utils.JSONWrite(w, http.StatusOK, conv)
}

// listConversationMessages handles GET /conversations/{id}/messages with an
// optional limit query parameter.
func listConversationMessages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	conv, ok := loadParticipantConversation(w, r)
	if !ok {
		return
	}
	var msgs []models.Message
	var err error
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		lim, perr := strconv.Atoi(limStr)
		if perr != nil || lim < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		msgs, err = store.ListMessages(conv.ID, lim)
	} else {
		msgs, err = store.ListMessages(conv.ID)
	}
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.JSONWrite(w, http.StatusOK, struct {
		Conversation string           `json:"conversation"`
		Messages     []models.Message `json:"messages"`
	}{Conversation: conv.ID, Messages: msgs})
}

// loadParticipantConversation resolves the path conversation and checks the
// actor may read it. Backend and admin callers bypass the participant check.
func loadParticipantConversation(w http.ResponseWriter, r *http.Request) (models.Conversation, bool) {
	id := mux.Vars(r)["id"]
	conv, err := store.GetConversation(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return models.Conversation{}, false
	}
	role := r.Header.Get("X-Role-Name")
	if role == "backend" || role == "admin" {
		return conv, true
	}
	actor, status, msg := auth.ResolveActorFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return models.Conversation{}, false
	}
	if !conv.HasParticipant(actor) {
		utils.JSONError(w, http.StatusForbidden, "not a participant")
		return models.Conversation{}, false
	}
	return conv, true
}
