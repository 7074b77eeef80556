package directory

import (
	"strings"

	"inboxd/pkg/models"
	"inboxd/pkg/store"
)

// Capability actions checked against a context.
const (
	RightSendMessages    = "send_messages"
	RightSendMessagesAll = "send_messages_all"
	RightReadAsAdmin     = "read_as_admin"
	RightManageTags      = "manage_tags"
)

// Context is an addressable messaging scope (course, group or account). All
// variants answer membership and capability questions against the directory
// records loaded through the admin API.
type Context interface {
	// Code returns the normalized context code, e.g. "course_12".
	Code() string
	// Kind returns "course", "group" or "account".
	Kind() string
	// IsMember reports whether the user belongs to this context.
	IsMember(userID string) bool
	// GrantsRight reports whether the user holds the named capability here.
	GrantsRight(userID, action string) bool
	// MemberIDs returns the addressable members of this context.
	MemberIDs() []string
}

// ParseCode splits a context code into kind and id. ok is false when the
// string is not a context code at all (plain user ids fall through).
func ParseCode(code string) (kind, id string, ok bool) {
	for _, k := range []string{"course", "group", "account"} {
		if strings.HasPrefix(code, k+"_") && len(code) > len(k)+1 {
			return k, code[len(k)+1:], true
		}
	}
	return "", "", false
}

// Lookup resolves a context code against the stored directory.
func Lookup(code string) (Context, error) {
	kind, id, ok := ParseCode(code)
	if !ok {
		return nil, ErrUnknownContext
	}
	switch kind {
	case "course":
		c, err := store.GetCourse(id)
		if err != nil {
			return nil, ErrUnknownContext
		}
		return &courseContext{c}, nil
	case "group":
		g, err := store.GetGroup(id)
		if err != nil {
			return nil, ErrUnknownContext
		}
		return &groupContext{g}, nil
	case "account":
		a, err := store.GetAccount(id)
		if err != nil {
			return nil, ErrUnknownContext
		}
		return &accountContext{a}, nil
	}
	return nil, ErrUnknownContext
}

type courseContext struct{ c models.Course }

func (cc *courseContext) Code() string { return "course_" + cc.c.ID }
func (cc *courseContext) Kind() string { return "course" }

func (cc *courseContext) IsMember(userID string) bool {
	for _, e := range cc.c.Enrollments {
		if e.UserID == userID && e.Active {
			return true
		}
	}
	return false
}

// Instructor roles carry the admin capabilities on a course. Account admins of
// the owning account inherit every right.
func (cc *courseContext) GrantsRight(userID, action string) bool {
	if accountAdmin(cc.c.AccountID, userID) {
		return true
	}
	for _, e := range cc.c.Enrollments {
		if e.UserID != userID || !e.Active {
			continue
		}
		switch e.Role {
		case "teacher", "ta":
			return true
		default:
			return action == RightSendMessages
		}
	}
	return false
}

func (cc *courseContext) MemberIDs() []string {
	var out []string
	for _, e := range cc.c.Enrollments {
		if e.Active {
			out = append(out, e.UserID)
		}
	}
	return out
}

// Course returns the underlying course record.
func (cc *courseContext) Course() models.Course { return cc.c }

type groupContext struct{ g models.Group }

func (gc *groupContext) Code() string { return "group_" + gc.g.ID }
func (gc *groupContext) Kind() string { return "group" }

func (gc *groupContext) IsMember(userID string) bool {
	for _, m := range gc.g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Group capability checks defer to the parent context; a group member holds
// plain send rights directly.
func (gc *groupContext) GrantsRight(userID, action string) bool {
	if action == RightSendMessages && gc.IsMember(userID) {
		return true
	}
	if gc.g.Context == "" {
		return false
	}
	parent, err := Lookup(gc.g.Context)
	if err != nil {
		return false
	}
	return parent.GrantsRight(userID, action)
}

func (gc *groupContext) MemberIDs() []string {
	return append([]string(nil), gc.g.Members...)
}

// Group returns the underlying group record.
func (gc *groupContext) Group() models.Group { return gc.g }

type accountContext struct{ a models.Account }

func (ac *accountContext) Code() string { return "account_" + ac.a.ID }
func (ac *accountContext) Kind() string { return "account" }

func (ac *accountContext) IsMember(userID string) bool {
	for _, admin := range ac.a.Admins {
		if admin == userID {
			return true
		}
	}
	return false
}

func (ac *accountContext) GrantsRight(userID, action string) bool {
	return ac.IsMember(userID)
}

func (ac *accountContext) MemberIDs() []string {
	return append([]string(nil), ac.a.Admins...)
}

func accountAdmin(accountID, userID string) bool {
	if accountID == "" {
		return false
	}
	a, err := store.GetAccount(accountID)
	if err != nil {
		return false
	}
	for _, admin := range a.Admins {
		if admin == userID {
			return true
		}
	}
	return false
}

// GroupParent returns the parent context code of a group context, or "".
func GroupParent(ctx Context) string {
	if gc, ok := ctx.(*groupContext); ok {
		return gc.g.Context
	}
	return ""
}

// Collaborative reports whether a group context allows open messaging. Every
// non-group context is treated as collaborative.
func Collaborative(ctx Context) bool {
	if gc, ok := ctx.(*groupContext); ok {
		return gc.g.Collaborative
	}
	return true
}

// CourseState returns the workflow state for course contexts, "" otherwise.
func CourseState(ctx Context) string {
	if cc, ok := ctx.(*courseContext); ok {
		return cc.c.WorkflowState
	}
	return ""
}

// RootAccountID walks a context to its owning account id.
func RootAccountID(ctx Context) string {
	switch c := ctx.(type) {
	case *accountContext:
		return c.a.ID
	case *courseContext:
		return c.c.AccountID
	case *groupContext:
		if c.g.Context == "" {
			return ""
		}
		parent, err := Lookup(c.g.Context)
		if err != nil {
			return ""
		}
		return RootAccountID(parent)
	}
	return ""
}
