package dispatch

import (
	"strings"

	"inboxd/pkg/directory"
	"inboxd/pkg/models"
)

// The gate is a sequence of ordered, read-only checks. Each returns a typed
// failure; callers run them fail-fast in the order defined here.

// CheckReplyLock fails when the conversation is locked against the actor.
func CheckReplyLock(conv *models.Conversation, actor string) error {
	if conv != nil && conv.LockedForUser(actor) {
		return ErrRepliesLocked()
	}
	return nil
}

// CheckCourseState fails when the context is a completed course and the actor
// lacks the admin-read override. Runs before recipient resolution.
func CheckCourseState(ctx directory.Context, actor string) error {
	if ctx == nil {
		return nil
	}
	if directory.CourseState(ctx) != models.CourseCompleted {
		return nil
	}
	if ctx.GrantsRight(actor, directory.RightReadAsAdmin) {
		return nil
	}
	return ErrCourseConcluded()
}

// CheckBody fails on an empty or whitespace-only body.
func CheckBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyBody()
	}
	return nil
}

// CheckCapacity fails when the resolved recipient count exceeds the
// participant-capacity policy.
func CheckCapacity(recipients []models.User, cap int) error {
	if cap > 0 && len(recipients) > cap {
		return ErrTooManyParticipants(cap)
	}
	return nil
}

// CheckEnrollments fails when any recipient lacks an active membership in a
// course context, carrying the offending names. Context admins are exempt.
func CheckEnrollments(ctx directory.Context, recipients []models.User) error {
	if ctx == nil || ctx.Kind() != "course" {
		return nil
	}
	var names []string
	for _, r := range recipients {
		if ctx.IsMember(r.ID) || ctx.GrantsRight(r.ID, directory.RightReadAsAdmin) {
			continue
		}
		name := r.Name
		if name == "" {
			name = r.ID
		}
		names = append(names, name)
	}
	if len(names) > 0 {
		return ErrUnauthorizedRecipients(names)
	}
	return nil
}
