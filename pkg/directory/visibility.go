package directory

import (
	"errors"

	"inboxd/pkg/models"
	"inboxd/pkg/store"
)

// ErrUnknownContext marks a context code that resolves to no directory record.
var ErrUnknownContext = errors.New("unknown context code")

// ErrUnknownUser marks a user id absent from the directory.
var ErrUnknownUser = errors.New("unknown user")

// LookupUser fetches a user record by id.
func LookupUser(id string) (models.User, error) {
	u, err := store.GetUser(id)
	if err != nil {
		return models.User{}, ErrUnknownUser
	}
	return u, nil
}

// Visible reports whether target is addressable by sender: the two share at
// least one context, or the sender addresses themselves.
func Visible(sender, target models.User) bool {
	if sender.ID == target.ID {
		return true
	}
	seen := make(map[string]bool, len(sender.Contexts))
	for _, c := range sender.Contexts {
		seen[c] = true
	}
	for _, c := range target.Contexts {
		if seen[c] {
			return true
		}
	}
	return false
}

// HasSiteAdminGrant reports whether the user holds a send-to-anyone grant on
// some account. Senders with this grant resolve recipients non-strictly.
func HasSiteAdminGrant(userID string) bool {
	u, err := store.GetUser(userID)
	if err != nil {
		return false
	}
	for _, code := range u.Contexts {
		kind, id, ok := ParseCode(code)
		if !ok || kind != "account" {
			continue
		}
		if accountAdmin(id, userID) {
			return true
		}
	}
	return false
}

// RootAccountForUser finds the account governing a user's signature feature:
// the first account context the user belongs to, else the owning account of
// the first course context.
func RootAccountForUser(userID string) (models.Account, error) {
	u, err := store.GetUser(userID)
	if err != nil {
		return models.Account{}, ErrUnknownUser
	}
	var courseFallback string
	for _, code := range u.Contexts {
		kind, id, ok := ParseCode(code)
		if !ok {
			continue
		}
		switch kind {
		case "account":
			return store.GetAccount(id)
		case "course":
			if courseFallback == "" {
				courseFallback = id
			}
		}
	}
	if courseFallback != "" {
		c, err := store.GetCourse(courseFallback)
		if err == nil && c.AccountID != "" {
			return store.GetAccount(c.AccountID)
		}
	}
	return models.Account{}, ErrUnknownContext
}
