package dispatch

import (
	"strings"
	"testing"
	"time"

	"inboxd/pkg/models"
	"inboxd/pkg/store"
)

func seedOutOfOffice(t *testing.T, userID, body string) models.InboxSettings {
	t.Helper()
	settings := models.InboxSettings{
		UserID:             userID,
		OutOfOfficeEnabled: true,
		Subject:            "Away",
		Message:            body,
		UpdatedTS:          time.Now().UTC().UnixNano(),
	}
	if err := store.SaveInboxSettings(settings); err != nil {
		t.Fatalf("seed inbox settings: %v", err)
	}
	return settings
}

func automatedReplies(t *testing.T, author, recipient string) []models.Message {
	t.Helper()
	convs, err := store.ListConversations(author)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	var out []models.Message
	for _, c := range convs {
		msgs, err := store.ListMessages(c.ID)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		for _, m := range msgs {
			if m.Automated && m.Author == recipient {
				out = append(out, m)
			}
		}
	}
	return out
}

func TestAutoReplyOncePerUnchangedSettings(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)
	r := NewResponder(d)
	d.AfterPersist = func(author string, recipients []models.User, ts int64) {
		r.Respond(author, recipients, ts)
	}
	seedOutOfOffice(t, "s1", "I am away")

	if _, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"s1"}, Body: "ping"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if got := automatedReplies(t, "teach", "s1"); len(got) != 1 {
		t.Fatalf("expected one auto-reply, got %d", len(got))
	}

	// unchanged settings: a second message must not trigger another reply
	if _, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"s1"}, Body: "ping again"}); err != nil {
		t.Fatalf("second send: %v", err)
	}
	if got := automatedReplies(t, "teach", "s1"); len(got) != 1 {
		t.Fatalf("expected dedup, got %d auto-replies", len(got))
	}

	// changing the message body makes the pair eligible for exactly one more
	seedOutOfOffice(t, "s1", "Back next week")
	if _, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"s1"}, Body: "ping third"}); err != nil {
		t.Fatalf("third send: %v", err)
	}
	if got := automatedReplies(t, "teach", "s1"); len(got) != 2 {
		t.Fatalf("expected second auto-reply after settings change, got %d", len(got))
	}
}

func TestAutoReplySkipsSelf(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)
	r := NewResponder(d)
	seedOutOfOffice(t, "teach", "away")

	sent := r.Respond("teach", []models.User{{ID: "teach"}}, time.Now().UTC().UnixNano())
	if sent != 0 {
		t.Fatalf("expected no self auto-reply, sent %d", sent)
	}
}

func TestAutoReplyRespectsDateRange(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)
	r := NewResponder(d)

	now := time.Now().UTC().UnixNano()
	settings := models.InboxSettings{
		UserID:             "s1",
		OutOfOfficeEnabled: true,
		FirstDate:          now + int64(24*time.Hour), // starts tomorrow
		Message:            "away soon",
	}
	if err := store.SaveInboxSettings(settings); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	if sent := r.Respond("teach", []models.User{{ID: "s1"}}, now); sent != 0 {
		t.Fatalf("expected no reply outside active window, sent %d", sent)
	}
}

func TestAutoReplySignatureAppending(t *testing.T) {
	openStore(t)
	if err := store.SaveAccount(models.Account{ID: "a1", Admins: []string{"root"}, SignatureBlockEnabled: true}); err != nil {
		t.Fatalf("enable signature feature: %v", err)
	}
	d := newDispatcher(50)
	r := NewResponder(d)

	settings := models.InboxSettings{
		UserID:             "s1",
		OutOfOfficeEnabled: true,
		Message:            "I am away",
		UseSignature:       true,
		Signature:          "Sam One, Biology",
	}
	if err := store.SaveInboxSettings(settings); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	if sent := r.Respond("teach", []models.User{{ID: "s1"}}, time.Now().UTC().UnixNano()); sent != 1 {
		t.Fatalf("expected one reply, sent %d", sent)
	}
	replies := automatedReplies(t, "teach", "s1")
	if len(replies) != 1 {
		t.Fatalf("expected one automated message, got %d", len(replies))
	}
	if !strings.HasSuffix(replies[0].Body, "Sam One, Biology") {
		t.Fatalf("signature not appended: %q", replies[0].Body)
	}
}

func TestSettingsHashChangesWithFields(t *testing.T) {
	base := models.InboxSettings{OutOfOfficeEnabled: true, Subject: "Away", Message: "m"}
	same := SettingsHash(base)
	if SettingsHash(base) != same {
		t.Fatal("hash not stable")
	}
	changed := base
	changed.Message = "different"
	if SettingsHash(changed) == same {
		t.Fatal("hash must change with message body")
	}
}

func TestSweepRepliesToPendingAuthors(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)
	r := NewResponder(d)

	// message lands before out-of-office is configured; the sweep catches up
	if _, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"s1"}, Body: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	seedOutOfOffice(t, "s1", "on leave")

	sent, err := r.Sweep(time.Now().UTC().UnixNano(), 0)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected one sweep reply, sent %d", sent)
	}
	if got := automatedReplies(t, "teach", "s1"); len(got) != 1 {
		t.Fatalf("expected one automated reply, got %d", len(got))
	}

	// second sweep with unchanged settings sends nothing
	sent, err = r.Sweep(time.Now().UTC().UnixNano(), 0)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected idempotent sweep, sent %d", sent)
	}
}
