package store

import (
	"testing"
	"time"

	"inboxd/pkg/models"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestConversationRoundTrip(t *testing.T) {
	openTestStore(t)
	c := models.Conversation{
		ID: "conv-1", Context: "course_12",
		Participants: []string{"a", "b"}, Tags: []string{"course_12"},
		CreatedTS: time.Now().UnixNano(),
	}
	if err := SaveConversation(c); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := GetConversation("conv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Context != c.Context || len(got.Participants) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if _, err := GetConversation("nope"); err == nil {
		t.Fatal("expected error for missing conversation")
	}
}

func TestMessagesKeepTimestampOrder(t *testing.T) {
	openTestStore(t)
	if err := SaveConversation(models.Conversation{ID: "conv-2", Participants: []string{"a"}}); err != nil {
		t.Fatalf("save conv: %v", err)
	}
	base := time.Now().UnixNano()
	for i := 0; i < 5; i++ {
		msg := models.Message{
			ID: fakeMsgID(i), Conversation: "conv-2", Author: "a",
			TS: base + int64(i), Body: "m",
		}
		if err := AppendMessage("conv-2", msg); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	msgs, err := ListMessages("conv-2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].TS < msgs[i-1].TS {
			t.Fatalf("messages out of order at %d", i)
		}
	}
	limited, err := ListMessages("conv-2", 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(limited))
	}
}

func fakeMsgID(i int) string { return "msg-" + string(rune('a'+i)) }

func TestListConversationsByParticipant(t *testing.T) {
	openTestStore(t)
	convs := []models.Conversation{
		{ID: "c1", Participants: []string{"a", "b"}},
		{ID: "c2", Participants: []string{"b", "c"}},
		{ID: "c3", Participants: []string{"a"}},
	}
	for _, c := range convs {
		if err := SaveConversation(c); err != nil {
			t.Fatalf("save %s: %v", c.ID, err)
		}
	}
	mine, err := ListConversations("a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 conversations for a, got %d", len(mine))
	}
	all, err := ListConversations("")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(all))
	}
}

func TestInboxSettingsAndAutoReplyRecords(t *testing.T) {
	openTestStore(t)
	s := models.InboxSettings{UserID: "u1", OutOfOfficeEnabled: true, Subject: "Away"}
	if err := SaveInboxSettings(s); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	got, err := GetInboxSettings("u1")
	if err != nil || got.Subject != "Away" {
		t.Fatalf("get settings: %v %+v", err, got)
	}
	list, err := ListInboxSettings()
	if err != nil || len(list) != 1 {
		t.Fatalf("list settings: %v %d", err, len(list))
	}

	rec := models.AutoReplyRecord{Author: "a", Recipient: "u1", SettingsHash: "h", SentTS: 42}
	if err := SaveAutoReplyRecord(rec); err != nil {
		t.Fatalf("save record: %v", err)
	}
	r, err := GetAutoReplyRecord("a", "u1")
	if err != nil || r.SettingsHash != "h" {
		t.Fatalf("get record: %v %+v", err, r)
	}
	if _, err := GetAutoReplyRecord("a", "other"); err == nil {
		t.Fatal("expected miss for unknown pair")
	}
}

func TestListKeysByPrefix(t *testing.T) {
	openTestStore(t)
	if err := SaveUser(models.User{ID: "u1"}); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if err := SaveCourse(models.Course{ID: "12"}); err != nil {
		t.Fatalf("save course: %v", err)
	}
	keys, err := ListKeys("user:")
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "user:u1" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
