package directory

import (
	"testing"

	"inboxd/pkg/models"
	"inboxd/pkg/store"
)

func openStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.SaveAccount(models.Account{ID: "a1", Admins: []string{"root"}}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	course := models.Course{
		ID: "12", WorkflowState: models.CourseAvailable, AccountID: "a1",
		Enrollments: []models.Enrollment{
			{UserID: "teach", Role: "teacher", Active: true},
			{UserID: "stu", Role: "student", Active: true},
			{UserID: "old", Role: "student", Active: false},
		},
	}
	if err := store.SaveCourse(course); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	group := models.Group{ID: "7", Collaborative: false, Context: "course_12", Members: []string{"stu"}}
	if err := store.SaveGroup(group); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	for _, u := range []models.User{
		{ID: "teach", Contexts: []string{"course_12"}},
		{ID: "stu", Contexts: []string{"course_12", "group_7"}},
		{ID: "root", Contexts: []string{"account_a1"}},
		{ID: "loner"},
	} {
		if err := store.SaveUser(u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
}

func TestParseCode(t *testing.T) {
	cases := []struct {
		in   string
		kind string
		id   string
		ok   bool
	}{
		{"course_12", "course", "12", true},
		{"group_7", "group", "7", true},
		{"account_a1", "account", "a1", true},
		{"user_5", "", "", false},
		{"course_", "", "", false},
		{"stu", "", "", false},
	}
	for _, c := range cases {
		kind, id, ok := ParseCode(c.in)
		if kind != c.kind || id != c.id || ok != c.ok {
			t.Fatalf("ParseCode(%q) = %q %q %v", c.in, kind, id, ok)
		}
	}
}

func TestCourseMembershipAndRights(t *testing.T) {
	openStore(t)
	ctx, err := Lookup("course_12")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ctx.IsMember("stu") || ctx.IsMember("old") || ctx.IsMember("loner") {
		t.Fatal("membership must require an active enrollment")
	}
	if !ctx.GrantsRight("teach", RightSendMessagesAll) {
		t.Fatal("teacher should hold send_messages_all")
	}
	if ctx.GrantsRight("stu", RightSendMessagesAll) {
		t.Fatal("student must not hold send_messages_all")
	}
	if !ctx.GrantsRight("stu", RightSendMessages) {
		t.Fatal("student should hold send_messages")
	}
	// account admins inherit every right on courses under their account
	if !ctx.GrantsRight("root", RightReadAsAdmin) {
		t.Fatal("account admin should hold read_as_admin")
	}
	members := ctx.MemberIDs()
	if len(members) != 2 {
		t.Fatalf("expected 2 active members, got %v", members)
	}
}

func TestGroupRightsDeferToParent(t *testing.T) {
	openStore(t)
	ctx, err := Lookup("group_7")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if Collaborative(ctx) {
		t.Fatal("group 7 is non-collaborative")
	}
	if GroupParent(ctx) != "course_12" {
		t.Fatalf("parent: %s", GroupParent(ctx))
	}
	if !ctx.GrantsRight("stu", RightSendMessages) {
		t.Fatal("member should hold send_messages directly")
	}
	// teacher is not a group member; manage_tags resolves via the parent course
	if !ctx.GrantsRight("teach", RightManageTags) {
		t.Fatal("teacher should inherit manage_tags from parent course")
	}
	if ctx.GrantsRight("loner", RightManageTags) {
		t.Fatal("outsider must not gain rights")
	}
	if RootAccountID(ctx) != "a1" {
		t.Fatalf("root account: %s", RootAccountID(ctx))
	}
}

func TestLookupUnknownContext(t *testing.T) {
	openStore(t)
	for _, code := range []string{"course_404", "group_404", "account_404", "banana"} {
		if _, err := Lookup(code); err != ErrUnknownContext {
			t.Fatalf("Lookup(%q) err = %v", code, err)
		}
	}
}

func TestVisibility(t *testing.T) {
	openStore(t)
	teach, _ := LookupUser("teach")
	stu, _ := LookupUser("stu")
	loner, _ := LookupUser("loner")

	if !Visible(teach, stu) {
		t.Fatal("shared course should grant visibility")
	}
	if Visible(teach, loner) {
		t.Fatal("no shared context, no visibility")
	}
	if !Visible(loner, loner) {
		t.Fatal("self is always visible")
	}
}

func TestHasSiteAdminGrant(t *testing.T) {
	openStore(t)
	if !HasSiteAdminGrant("root") {
		t.Fatal("root is an account admin")
	}
	if HasSiteAdminGrant("teach") || HasSiteAdminGrant("missing") {
		t.Fatal("non-admins must not get the grant")
	}
}

func TestRootAccountForUser(t *testing.T) {
	openStore(t)
	a, err := RootAccountForUser("root")
	if err != nil || a.ID != "a1" {
		t.Fatalf("account context user: %v %+v", err, a)
	}
	// course members resolve through the owning account
	a, err = RootAccountForUser("stu")
	if err != nil || a.ID != "a1" {
		t.Fatalf("course fallback: %v %+v", err, a)
	}
	if _, err := RootAccountForUser("loner"); err == nil {
		t.Fatal("user with no contexts has no root account")
	}
}
