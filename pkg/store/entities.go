package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"inboxd/pkg/models"
)

// Typed accessors for directory, media and inbox records. These all share the
// same marshal-and-set shape; kept explicit so call sites read clearly.

func getJSON(key string, out interface{}) error {
	s, err := GetKey(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("invalid record at %s: %w", key, err)
	}
	return nil
}

func putJSON(key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record for %s: %w", key, err)
	}
	return SaveKey(key, b)
}

func SaveUser(u models.User) error { return putJSON(UserKey(u.ID), u) }

func GetUser(id string) (models.User, error) {
	var u models.User
	err := getJSON(UserKey(id), &u)
	return u, err
}

func SaveCourse(c models.Course) error { return putJSON(CourseKey(c.ID), c) }

func GetCourse(id string) (models.Course, error) {
	var c models.Course
	err := getJSON(CourseKey(id), &c)
	return c, err
}

func SaveGroup(g models.Group) error { return putJSON(GroupKey(g.ID), g) }

func GetGroup(id string) (models.Group, error) {
	var g models.Group
	err := getJSON(GroupKey(id), &g)
	return g, err
}

func SaveAccount(a models.Account) error { return putJSON(AccountKey(a.ID), a) }

func GetAccount(id string) (models.Account, error) {
	var a models.Account
	err := getJSON(AccountKey(id), &a)
	return a, err
}

func SaveMediaObject(m models.MediaObject) error { return putJSON(MediaKey(m.ID, m.Type), m) }

func GetMediaObject(id, mediaType string) (models.MediaObject, error) {
	var m models.MediaObject
	err := getJSON(MediaKey(id, mediaType), &m)
	return m, err
}

func SaveInboxSettings(s models.InboxSettings) error { return putJSON(InboxKey(s.UserID), s) }

func GetInboxSettings(userID string) (models.InboxSettings, error) {
	var s models.InboxSettings
	err := getJSON(InboxKey(userID), &s)
	return s, err
}

// ListInboxSettings returns all stored inbox settings. Used by the
// out-of-office sweep.
func ListInboxSettings() ([]models.InboxSettings, error) {
	keys, err := ListKeys("inbox:")
	if err != nil {
		return nil, err
	}
	out := make([]models.InboxSettings, 0, len(keys))
	for _, k := range keys {
		var s models.InboxSettings
		if err := getJSON(k, &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func SaveAutoReplyRecord(r models.AutoReplyRecord) error {
	return putJSON(AutoReplyKey(r.Author, r.Recipient), r)
}

func GetAutoReplyRecord(author, recipient string) (models.AutoReplyRecord, error) {
	var r models.AutoReplyRecord
	err := getJSON(AutoReplyKey(author, recipient), &r)
	return r, err
}

// ListUserIDs returns all user ids present in the directory.
func ListUserIDs() ([]string, error) {
	keys, err := ListKeys("user:")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, "user:"))
	}
	return out, nil
}
