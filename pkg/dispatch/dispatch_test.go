package dispatch

import (
	"errors"
	"testing"
	"time"

	"inboxd/pkg/models"
	"inboxd/pkg/store"
	"inboxd/pkg/strand"
)

// seedDirectory loads a small roster: course 12 under account a1 with a
// teacher and two students, plus a non-collaborative group 7 inside it.
func seedDirectory(t *testing.T) {
	t.Helper()
	users := []models.User{
		{ID: "teach", Name: "Tess Teacher", Contexts: []string{"course_12"}},
		{ID: "stu", Name: "Stu Dent", Contexts: []string{"course_12"}},
		{ID: "s1", Name: "Sam One", Contexts: []string{"course_12"}},
		{ID: "s2", Name: "Sue Two", Contexts: []string{"course_12"}},
		{ID: "ghost", Name: "Gone Ghost"},
		{ID: "outsider", Name: "Out Sider"},
	}
	for _, u := range users {
		if err := store.SaveUser(u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	course := models.Course{
		ID: "12", Name: "Biology", WorkflowState: models.CourseAvailable, AccountID: "a1",
		Enrollments: []models.Enrollment{
			{UserID: "teach", Role: "teacher", Active: true},
			{UserID: "stu", Role: "student", Active: true},
			{UserID: "s1", Role: "student", Active: true},
			{UserID: "s2", Role: "student", Active: true},
		},
	}
	if err := store.SaveCourse(course); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	concluded := models.Course{
		ID: "99", Name: "History", WorkflowState: models.CourseCompleted, AccountID: "a1",
		Enrollments: []models.Enrollment{
			{UserID: "stu", Role: "student", Active: true},
			{UserID: "s1", Role: "student", Active: true},
		},
	}
	if err := store.SaveCourse(concluded); err != nil {
		t.Fatalf("seed concluded course: %v", err)
	}
	group := models.Group{
		ID: "7", Name: "Project Team", Collaborative: false, Context: "course_12",
		Members: []string{"s1", "s2"},
	}
	if err := store.SaveGroup(group); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	if err := store.SaveAccount(models.Account{ID: "a1", Name: "Root", Admins: []string{"root"}}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func openStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	seedDirectory(t)
}

func newDispatcher(immediate int) *Dispatcher {
	return New(strand.NewEngine(1024), immediate, 100)
}

func TestEmptyBodyAlwaysRejected(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)

	for _, req := range []*Request{
		{Actor: "teach", RawRecipients: []string{"s1"}, Body: ""},
		{Actor: "teach", RawRecipients: []string{"course_12"}, Context: "course_12", Body: "   "},
	} {
		_, err := d.Send(req)
		de := AsError(err)
		if de == nil || de.Kind != KindEmptyBody {
			t.Fatalf("expected empty_body, got %v", err)
		}
		if de.Status != 400 || de.Attribute != "empty_message" {
			t.Fatalf("wrong status/attribute: %d %s", de.Status, de.Attribute)
		}
	}
}

func TestCourseSendResolvesStudentsAndExcludesSender(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)

	res, err := d.Send(&Request{
		Actor: "teach", RawRecipients: []string{"course_12"}, Context: "course_12", Body: "hi",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if res.Status != StatusOK {
		t.Fatalf("expected status ok, got %s", res.Status)
	}
	want := map[string]bool{"stu": true, "s1": true, "s2": true}
	if len(res.Recipients) != len(want) {
		t.Fatalf("expected %d recipients, got %v", len(want), res.Recipients)
	}
	for _, id := range res.Recipients {
		if id == "teach" {
			t.Fatal("sender must be excluded from recipients")
		}
		if !want[id] {
			t.Fatalf("unexpected recipient %s", id)
		}
	}
	found := false
	for _, tag := range res.Tags {
		if tag == "course_12" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected course_12 tag, got %v", res.Tags)
	}

	msgs, err := store.ListMessages(res.Conversation.ID)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected one persisted message, got %d (%v)", len(msgs), err)
	}
	if msgs[0].Body != "hi" || msgs[0].Author != "teach" {
		t.Fatalf("persisted message wrong: %+v", msgs[0])
	}
}

func TestSelfMessageRule(t *testing.T) {
	openStore(t)

	// one token equal to the sender resolves to exactly the sender
	got, err := ResolveRecipients(&Request{Actor: "teach", RawRecipients: []string{"teach"}}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0].ID != "teach" {
		t.Fatalf("expected [teach], got %v", got)
	}

	// any other resolution drops the sender
	got, err = ResolveRecipients(&Request{Actor: "teach", RawRecipients: []string{"teach", "s1"}}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("expected [s1], got %v", got)
	}
}

func TestContinuityIncludesPriorParticipants(t *testing.T) {
	openStore(t)

	conv := &models.Conversation{ID: "c1", Participants: []string{"teach", "ghost"}}
	// ghost shares no context with the sender; strict resolution would
	// normally drop them
	got, err := ResolveRecipients(&Request{Actor: "teach", RawRecipients: []string{"ghost"}, Strict: true}, conv)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ghost" {
		t.Fatalf("expected prior participant included, got %v", got)
	}

	// without the conversation the same token is invisible
	got, err = ResolveRecipients(&Request{Actor: "teach", RawRecipients: []string{"ghost"}, Strict: true}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no recipients, got %v", got)
	}
}

func TestStrictContextExpansionRequiresMembership(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)

	// a sender with no enrollment anywhere must not expand the roster
	_, err := d.Send(&Request{Actor: "outsider", RawRecipients: []string{"course_12"}, Body: "hi", Strict: true})
	de := AsError(err)
	if de == nil || de.Kind != KindInvalidContext {
		t.Fatalf("expected invalid_context, got %v", err)
	}

	// an enrolled student may still address the course
	res, err := d.Send(&Request{Actor: "stu", RawRecipients: []string{"course_12"}, Body: "hi", Strict: true})
	if err != nil {
		t.Fatalf("member send failed: %v", err)
	}
	if len(res.Recipients) != 3 {
		t.Fatalf("expected 3 recipients, got %v", res.Recipients)
	}

	// non-strict senders (site-admin grant) bypass the membership gate
	if _, err := d.Send(&Request{Actor: "root", RawRecipients: []string{"course_12"}, Body: "hi"}); err != nil {
		t.Fatalf("non-strict send failed: %v", err)
	}
}

func TestAppendRequiresParticipant(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)

	res, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"s1"}, Body: "private"})
	if err != nil {
		t.Fatalf("seed send: %v", err)
	}
	convID := res.Conversation.ID

	_, err = d.Send(&Request{Actor: "outsider", ConversationID: convID, RawRecipients: []string{"teach"}, Body: "intrude"})
	de := AsError(err)
	if de == nil || de.Kind != KindInvalidMessageParticipant {
		t.Fatalf("expected invalid_message_participant, got %v", err)
	}
	if de.Status != 403 {
		t.Fatalf("expected status 403, got %d", de.Status)
	}

	conv, err := store.GetConversation(convID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv.HasParticipant("outsider") {
		t.Fatal("rejected sender must not join the participant list")
	}
	msgs, _ := store.ListMessages(convID)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	// existing participants still reply freely
	if _, err := d.Send(&Request{Actor: "s1", ConversationID: convID, RawRecipients: []string{"teach"}, Body: "reply"}); err != nil {
		t.Fatalf("participant reply failed: %v", err)
	}
}

func TestUnknownConversationID(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)

	_, err := d.Send(&Request{Actor: "teach", ConversationID: "no-such-conv", RawRecipients: []string{"s1"}, Body: "hi"})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	if AsError(err) != nil {
		t.Fatalf("missing conversation is not a validation failure: %v", err)
	}
}

func TestNonCollaborativeGroupNeedsTagRights(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)

	// student lacks tag management on the parent course
	_, err := d.Send(&Request{Actor: "stu", RawRecipients: []string{"group_7"}, Body: "hi"})
	de := AsError(err)
	if de == nil || de.Kind != KindInsufficientPermissions {
		t.Fatalf("expected insufficient_permissions, got %v", err)
	}

	// teacher holds the capability and may message the group
	res, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"group_7"}, Body: "hi"})
	if err != nil {
		t.Fatalf("teacher send failed: %v", err)
	}
	if len(res.Recipients) != 2 {
		t.Fatalf("expected both group members, got %v", res.Recipients)
	}

	// but not as a brand-new group conversation
	_, err = d.Send(&Request{Actor: "teach", RawRecipients: []string{"group_7"}, Body: "hi", GroupConversation: true})
	de = AsError(err)
	if de == nil || de.Kind != KindGroupConversationNotAllowed {
		t.Fatalf("expected group_conversation_not_allowed, got %v", err)
	}
}

func TestCourseConcludedBeforeResolution(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)

	// recipient token is bogus; the concluded check must fire first
	_, err := d.Send(&Request{Actor: "stu", RawRecipients: []string{"no_such_user"}, Context: "course_99", Body: "hi"})
	de := AsError(err)
	if de == nil || de.Kind != KindCourseConcluded {
		t.Fatalf("expected course_concluded, got %v", err)
	}
	if de.Status != 401 || de.Attribute != "workflow_state" {
		t.Fatalf("wrong status/attribute: %d %s", de.Status, de.Attribute)
	}
}

func TestInvalidContext(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)

	_, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"course_404"}, Body: "hi"})
	de := AsError(err)
	if de == nil || de.Kind != KindInvalidContext {
		t.Fatalf("expected invalid_context, got %v", err)
	}
}

func TestRepliesLocked(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)

	conv := models.Conversation{ID: "c-locked", Participants: []string{"teach", "s1"}, LockedFor: []string{"s1"}}
	if err := store.SaveConversation(conv); err != nil {
		t.Fatalf("save conversation: %v", err)
	}
	_, err := d.Send(&Request{Actor: "s1", ConversationID: "c-locked", RawRecipients: []string{"teach"}, Body: "hi"})
	de := AsError(err)
	if de == nil || de.Kind != KindRepliesLocked {
		t.Fatalf("expected replies_locked, got %v", err)
	}
}

func TestTooManyParticipants(t *testing.T) {
	openStore(t)
	d := New(strand.NewEngine(1024), 50, 1)

	_, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"s1", "s2"}, Body: "hi"})
	de := AsError(err)
	if de == nil || de.Kind != KindTooManyParticipants {
		t.Fatalf("expected too_many_participants, got %v", err)
	}
}

func TestUnauthorizedRecipientsCarriesNames(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)

	_, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"outsider"}, Context: "course_12", Body: "hi"})
	de := AsError(err)
	if de == nil || de.Kind != KindUnauthorizedRecipients {
		t.Fatalf("expected unauthorized_recipients, got %v", err)
	}
	if len(de.Names) != 1 || de.Names[0] != "Out Sider" {
		t.Fatalf("expected offending names, got %v", de.Names)
	}
}

func TestDeferredSendReturnsPreview(t *testing.T) {
	openStore(t)
	d := newDispatcher(0) // every send defers

	res, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"s1"}, Body: "later"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if res.Status != StatusAccepted {
		t.Fatalf("expected status accepted, got %s", res.Status)
	}
	if res.Message.ID != PreviewID {
		t.Fatalf("expected preview id %q, got %q", PreviewID, res.Message.ID)
	}
	// nothing persisted until a worker drains the strand
	msgs, err := store.ListMessages(res.Conversation.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no persisted messages yet, got %d", len(msgs))
	}
}

func TestDeferredSendsPreserveSubmissionOrder(t *testing.T) {
	openStore(t)
	immediate := newDispatcher(50)
	first, err := immediate.Send(&Request{Actor: "teach", RawRecipients: []string{"s1"}, Body: "start"})
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	convID := first.Conversation.ID

	d := New(strand.NewEngine(1024), 0, 100)
	bodies := []string{"one", "two", "three", "four", "five"}
	for _, b := range bodies {
		res, err := d.Send(&Request{Actor: "teach", ConversationID: convID, RawRecipients: []string{"s1"}, Body: b})
		if err != nil {
			t.Fatalf("deferred send %q: %v", b, err)
		}
		if res.Status != StatusAccepted {
			t.Fatalf("expected accepted, got %s", res.Status)
		}
	}

	stop := make(chan struct{})
	defer close(stop)
	for i := 0; i < 4; i++ {
		go d.Engine.RunWorker(stop, d.HandleTask)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		msgs, err := store.ListMessages(convID)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(msgs) == len(bodies)+1 {
			for i, b := range bodies {
				if msgs[i+1].Body != b {
					t.Fatalf("order violated at %d: got %s want %s", i, msgs[i+1].Body, b)
				}
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for deferred sends; have %d messages", len(msgs))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMediaPlaceholderIdempotent(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)

	ref := &models.MediaRef{ID: "m1", Type: "audio"}
	if _, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"s1"}, Context: "course_12", Body: "listen", Media: ref}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	obj, err := store.GetMediaObject("m1", "audio")
	if err != nil {
		t.Fatalf("placeholder not created: %v", err)
	}
	if !obj.Placeholder || obj.Owner != "teach" || obj.RootAccount != "a1" {
		t.Fatalf("placeholder wrong: %+v", obj)
	}

	if _, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"s1"}, Context: "course_12", Body: "again", Media: ref}); err != nil {
		t.Fatalf("second send: %v", err)
	}
	again, err := store.GetMediaObject("m1", "audio")
	if err != nil {
		t.Fatalf("placeholder lookup: %v", err)
	}
	if again.CreatedTS != obj.CreatedTS {
		t.Fatal("placeholder recreated on identical media reference")
	}
}

func TestForwardedMessageValidation(t *testing.T) {
	openStore(t)
	d := newDispatcher(50)

	res, err := d.Send(&Request{Actor: "teach", RawRecipients: []string{"s1"}, Body: "original"})
	if err != nil {
		t.Fatalf("seed send: %v", err)
	}
	convID := res.Conversation.ID
	msgs, _ := store.ListMessages(convID)
	if len(msgs) != 1 {
		t.Fatalf("expected seeded message, got %d", len(msgs))
	}

	// valid forward of a message in the same conversation
	if _, err := d.Send(&Request{Actor: "teach", ConversationID: convID, RawRecipients: []string{"s1"}, Body: "fwd", ForwardedIDs: []string{msgs[0].ID}}); err != nil {
		t.Fatalf("valid forward rejected: %v", err)
	}

	// unknown id is not part of this conversation
	_, err = d.Send(&Request{Actor: "teach", ConversationID: convID, RawRecipients: []string{"s1"}, Body: "fwd", ForwardedIDs: []string{"nope"}})
	de := AsError(err)
	if de == nil || de.Kind != KindInvalidMessageForConversation {
		t.Fatalf("expected invalid_message_for_conversation, got %v", err)
	}
}

func TestInferTagsExpandsGroupParent(t *testing.T) {
	openStore(t)

	tags := InferTags([]string{"COURSE_12"}, []string{"group_7", "s1"}, "")
	want := []string{"course_12", "group_7", "user_s1"}
	if len(tags) != len(want) {
		t.Fatalf("expected %v, got %v", want, tags)
	}
	seen := make(map[string]bool)
	for _, tag := range tags {
		seen[tag] = true
	}
	for _, w := range want {
		if !seen[w] {
			t.Fatalf("missing tag %s in %v", w, tags)
		}
	}
	// group_7 expands into its parent course tag, already present and not
	// duplicated
	count := 0
	for _, tag := range tags {
		if tag == "course_12" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("course_12 duplicated: %v", tags)
	}
}
