package dispatch

import (
	"regexp"
	"strings"

	"inboxd/pkg/directory"
)

var validTag = regexp.MustCompile(`^(course|group|account|user)_[a-zA-Z0-9_-]+$`)

// plural forms collapse to the canonical singular prefix
var tagSynonyms = strings.NewReplacer(
	"courses_", "course_",
	"groups_", "group_",
	"accounts_", "account_",
	"users_", "user_",
)

// InferTags derives the normalized tag set for a send: explicit tags,
// recipient tokens and the context code are concatenated, canonicalized,
// group tags are expanded with their parent context tag, and the result is
// deduplicated preserving first occurrence. Pure apart from the group lookup.
func InferTags(explicit, tokens []string, contextCode string) []string {
	raw := make([]string, 0, len(explicit)+len(tokens)+1)
	raw = append(raw, explicit...)
	raw = append(raw, tokens...)
	if contextCode != "" {
		raw = append(raw, contextCode)
	}

	seen := make(map[string]bool)
	var out []string
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	for _, t := range raw {
		c := canonicalTag(t)
		if c == "" {
			continue
		}
		add(c)
		if strings.HasPrefix(c, "group_") {
			if parent := groupParentTag(c); parent != "" {
				add(canonicalTag(parent))
			}
		}
	}
	return out
}

// canonicalTag lower-cases, collapses synonyms, promotes bare user ids to
// user_ tags and drops anything that still fails the tag shape.
func canonicalTag(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return ""
	}
	t = tagSynonyms.Replace(t)
	if _, _, ok := directory.ParseCode(t); !ok && !strings.HasPrefix(t, "user_") {
		t = "user_" + t
	}
	if !validTag.MatchString(t) {
		return ""
	}
	return t
}

func groupParentTag(groupTag string) string {
	ctx, err := directory.Lookup(groupTag)
	if err != nil {
		return ""
	}
	return directory.GroupParent(ctx)
}
