package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"inboxd/pkg/directory"
	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/store"
)

// SettingsHash computes the snapshot hash of an out-of-office configuration.
// Any change to the fields below makes a recipient eligible for one new
// auto-reply per author.
func SettingsHash(s models.InboxSettings) string {
	h := sha256.New()
	fmt.Fprintf(h, "%t|%d|%d|%s|%s|%t|%s",
		s.OutOfOfficeEnabled, s.FirstDate, s.LastDate, s.Subject, s.Message, s.UseSignature, s.Signature)
	return hex.EncodeToString(h.Sum(nil))
}

// Responder produces out-of-office auto-replies by re-entering the dispatch
// pipeline with the automated flag set.
type Responder struct {
	D *Dispatcher
}

// NewResponder wires a Responder over a dispatcher.
func NewResponder(d *Dispatcher) *Responder { return &Responder{D: d} }

// Respond sends auto-replies from each out-of-office recipient back to the
// author of a just-delivered message. For every (author, recipient) pair at
// most one reply is sent per unchanged settings snapshot. Returns the number
// of replies dispatched.
func (r *Responder) Respond(author string, recipients []models.User, now int64) int {
	sent := 0
	for _, rec := range recipients {
		if rec.ID == author {
			continue
		}
		if r.respondOne(author, rec.ID, now) {
			sent++
		}
	}
	return sent
}

func (r *Responder) respondOne(author, recipient string, now int64) bool {
	settings, err := store.GetInboxSettings(recipient)
	if err != nil || !settings.ActiveOn(now) {
		return false
	}
	hash := SettingsHash(settings)

	// dedup guard: suppress when the latest automated reply for this pair
	// carries the same settings snapshot and postdates the absence start
	if last, err := store.GetAutoReplyRecord(author, recipient); err == nil {
		if last.SettingsHash == hash && last.SentTS >= settings.FirstDate {
			return false
		}
	}

	body := settings.Message
	if settings.UseSignature && settings.Signature != "" {
		if acct, err := directory.RootAccountForUser(recipient); err == nil && acct.SignatureBlockEnabled {
			body = body + "\n\n" + settings.Signature
		}
	}

	req := &Request{
		Actor:         recipient,
		RawRecipients: []string{author},
		Subject:       settings.Subject,
		Body:          body,
		Automated:     true,
	}
	res, err := r.D.Send(req)
	if err != nil {
		logger.Error("autoreply_send_failed", "author", author, "recipient", recipient, "error", err)
		return false
	}

	record := models.AutoReplyRecord{
		Author:       author,
		Recipient:    recipient,
		SettingsHash: hash,
		Conversation: res.Conversation.ID,
		SentTS:       now,
	}
	if err := store.SaveAutoReplyRecord(record); err != nil {
		logger.Error("autoreply_record_failed", "author", author, "recipient", recipient, "error", err)
	}
	autoRepliesSent.Inc()
	logger.Info("autoreply_sent", "author", author, "recipient", recipient, "conversation", res.Conversation.ID)
	return true
}

// Sweep scans stored inbox settings for users currently out of office and
// replies to authors who messaged them since the absence began and have not
// yet received a reply for the current settings snapshot. batch bounds the
// number of replies sent in one run; zero means unbounded.
func (r *Responder) Sweep(now int64, batch int) (int, error) {
	all, err := store.ListInboxSettings()
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, settings := range all {
		if !settings.ActiveOn(now) {
			continue
		}
		authors, err := pendingAuthors(settings)
		if err != nil {
			logger.Error("autoreply_sweep_scan_failed", "user", settings.UserID, "error", err)
			continue
		}
		for _, author := range authors {
			if r.respondOne(author, settings.UserID, now) {
				sent++
				if batch > 0 && sent >= batch {
					return sent, nil
				}
			}
		}
	}
	return sent, nil
}

// pendingAuthors lists users who sent a non-automated message to this user
// since the out-of-office start date.
func pendingAuthors(settings models.InboxSettings) ([]string, error) {
	convs, err := store.ListConversations(settings.UserID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, conv := range convs {
		msgs, err := store.ListMessages(conv.ID)
		if err != nil {
			continue
		}
		for _, m := range msgs {
			if m.Automated || m.Author == settings.UserID {
				continue
			}
			if settings.FirstDate != 0 && m.TS < settings.FirstDate {
				continue
			}
			if !seen[m.Author] {
				seen[m.Author] = true
				out = append(out, m.Author)
			}
		}
	}
	return out, nil
}
