package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"inboxd/pkg/directory"
	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/store"
	"inboxd/pkg/strand"
	"inboxd/pkg/utils"

	"github.com/cockroachdb/pebble"
)

// Dispatch statuses returned to callers.
const (
	StatusOK       = "ok"
	StatusAccepted = "accepted"
)

// PreviewID is the sentinel message id returned for deferred sends before
// the message is persisted.
const PreviewID = "0"

// StrandKey returns the serialization key for appends to one conversation.
func StrandKey(convID string) string { return "add_message_" + convID }

// Dispatcher runs a send through validation, then either persists the message
// immediately or defers it onto the conversation's strand.
type Dispatcher struct {
	Engine *strand.Engine
	// ImmediateLimit is the recipient count at or below which a send is
	// processed synchronously.
	ImmediateLimit int
	// ParticipantCap bounds the resolved recipient count.
	ParticipantCap int
	// AfterPersist is invoked once a non-automated message has been
	// persisted; the out-of-office responder hooks in here.
	AfterPersist func(author string, recipients []models.User, ts int64)
}

// New builds a Dispatcher over the given strand engine and policy values.
func New(engine *strand.Engine, immediateLimit, participantCap int) *Dispatcher {
	return &Dispatcher{Engine: engine, ImmediateLimit: immediateLimit, ParticipantCap: participantCap}
}

// Result is the caller-visible outcome of a send.
type Result struct {
	Status       string              `json:"status"`
	Message      models.Message      `json:"message"`
	Conversation models.Conversation `json:"conversation"`
	Recipients   []string            `json:"recipients"`
	Tags         []string            `json:"tags,omitempty"`
}

// queuedSend is the payload carried by a deferred strand task.
type queuedSend struct {
	Conversation models.Conversation `json:"conversation"`
	Message      models.Message      `json:"message"`
	Recipients   []string            `json:"recipients"`
	Automated    bool                `json:"automated"`
}

// Send validates and dispatches one message. Validation failures are returned
// as *Error; anything else is an infrastructure error.
func (d *Dispatcher) Send(req *Request) (*Result, error) {
	res, err := d.send(req)
	if err != nil {
		if de := AsError(err); de != nil {
			validationFailures.WithLabelValues(de.Kind).Inc()
			logger.Info("dispatch_rejected", "actor", req.Actor, "kind", de.Kind)
		}
		return nil, err
	}
	dispatchOutcomes.WithLabelValues(res.Status).Inc()
	return res, nil
}

func (d *Dispatcher) send(req *Request) (*Result, error) {
	var conv *models.Conversation
	if req.ConversationID != "" {
		c, err := store.GetConversation(req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, req.ConversationID)
		}
		conv = &c
		// only existing participants may append; new recipients join through
		// the participant union once the send persists
		if !conv.HasParticipant(req.Actor) {
			return nil, ErrNotAParticipant()
		}
	}

	if err := CheckReplyLock(conv, req.Actor); err != nil {
		return nil, err
	}

	contextCode := req.Context
	if contextCode == "" && conv != nil {
		contextCode = conv.Context
	}
	var ctx directory.Context
	if contextCode != "" {
		var err error
		ctx, err = directory.Lookup(contextCode)
		if err != nil {
			return nil, ErrInvalidContext(contextCode)
		}
		if err := CheckCourseState(ctx, req.Actor); err != nil {
			return nil, err
		}
	}

	if err := CheckBody(req.Body); err != nil {
		return nil, err
	}

	recipients, err := ResolveRecipients(req, conv)
	if err != nil {
		return nil, err
	}
	if err := CheckCapacity(recipients, d.ParticipantCap); err != nil {
		return nil, err
	}
	if err := CheckEnrollments(ctx, recipients); err != nil {
		return nil, err
	}

	tags := InferTags(req.Tags, req.RawRecipients, contextCode)

	now := time.Now().UTC().UnixNano()
	if conv == nil {
		c := models.Conversation{
			ID:           utils.GenConversationID(),
			Context:      contextCode,
			Subject:      req.Subject,
			Participants: participantUnion(nil, req.Actor, recipients),
			Tags:         tags,
			Private:      len(recipients) == 1 && !req.GroupConversation,
			CreatedTS:    now,
			UpdatedTS:    now,
		}
		conv = &c
	} else {
		conv.Participants = participantUnion(conv.Participants, req.Actor, recipients)
		conv.Tags = mergeTags(conv.Tags, tags)
	}

	rootAccount := ""
	if ctx != nil {
		rootAccount = directory.RootAccountID(ctx)
	}
	msg, err := BuildMessage(req, conv, rootAccount)
	if err != nil {
		return nil, err
	}

	recipientIDs := make([]string, len(recipients))
	for i, r := range recipients {
		recipientIDs[i] = r.ID
	}

	if len(recipients) <= d.ImmediateLimit {
		if err := d.persist(conv, msg); err != nil {
			return nil, err
		}
		if !req.Automated && d.AfterPersist != nil {
			d.AfterPersist(req.Actor, recipients, msg.TS)
		}
		logger.Info("dispatch_immediate", "conversation", conv.ID, "msg_id", msg.ID, "recipients", len(recipients))
		return &Result{Status: StatusOK, Message: msg, Conversation: *conv, Recipients: recipientIDs, Tags: tags}, nil
	}

	// deferred: conversation metadata is persisted up front so reads and
	// follow-up sends resolve; only the message append rides the strand
	if err := store.SaveConversation(*conv); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(queuedSend{Conversation: *conv, Message: msg, Recipients: recipientIDs, Automated: req.Automated})
	if err != nil {
		return nil, err
	}
	if err := d.Engine.EnqueueTask(StrandKey(conv.ID), conv.ID, payload, msg.TS, nil); err != nil {
		return nil, err
	}
	strandDepth.Set(float64(d.Engine.Len()))
	logger.Info("dispatch_deferred", "conversation", conv.ID, "strand", StrandKey(conv.ID), "recipients", len(recipients))

	preview := msg
	preview.ID = PreviewID
	return &Result{Status: StatusAccepted, Message: preview, Conversation: *conv, Recipients: recipientIDs, Tags: tags}, nil
}

// HandleTask executes one deferred send. Wire it as the strand worker
// handler; per-strand single flight gives the ordering guarantee.
func (d *Dispatcher) HandleTask(task *strand.Task) error {
	defer strandDepth.Set(float64(d.Engine.Len()))
	var q queuedSend
	if err := json.Unmarshal(task.Payload, &q); err != nil {
		logger.Error("deferred_send_bad_payload", "strand", task.Strand, "error", err)
		return err
	}
	// re-read the conversation so appends from earlier strand tasks are seen
	conv, err := store.GetConversation(q.Conversation.ID)
	if err != nil {
		conv = q.Conversation
	}
	conv.Participants = mergeTags(conv.Participants, q.Conversation.Participants)
	if err := d.persist(&conv, q.Message); err != nil {
		logger.Error("deferred_send_failed", "conversation", conv.ID, "msg_id", q.Message.ID, "error", err)
		return err
	}
	if !q.Automated && d.AfterPersist != nil {
		users := make([]models.User, 0, len(q.Recipients))
		for _, id := range q.Recipients {
			if u, err := directory.LookupUser(id); err == nil {
				users = append(users, u)
			}
		}
		d.AfterPersist(q.Message.Author, users, q.Message.TS)
	}
	logger.Info("deferred_send_persisted", "conversation", conv.ID, "msg_id", q.Message.ID)
	return nil
}

// persist writes the message and the updated conversation metadata in one
// synced batch.
func (d *Dispatcher) persist(conv *models.Conversation, msg models.Message) error {
	conv.MessageCount++
	conv.UpdatedTS = time.Now().UTC().UnixNano()

	convJSON, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	b := &pebble.Batch{}
	if err := b.Set([]byte(store.ConvKey(conv.ID)), convJSON, nil); err != nil {
		return err
	}
	key := store.MsgKey(conv.ID, msg.TS, store.NextMsgSeq())
	if err := b.Set([]byte(key), msgJSON, nil); err != nil {
		return err
	}
	return store.ApplyBatch(b, true)
}

func participantUnion(existing []string, actor string, recipients []models.User) []string {
	seen := make(map[string]bool, len(existing)+len(recipients)+1)
	out := make([]string, 0, len(existing)+len(recipients)+1)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, p := range existing {
		add(p)
	}
	add(actor)
	for _, r := range recipients {
		add(r.ID)
	}
	return out
}

func mergeTags(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing)+len(extra))
	out := make([]string, 0, len(existing)+len(extra))
	for _, t := range existing {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range extra {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
