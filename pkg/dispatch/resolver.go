package dispatch

import (
	"inboxd/pkg/directory"
	"inboxd/pkg/models"
)

// ResolveRecipients turns raw recipient tokens into a deduplicated list of
// addressable users.
//
// Rules applied, in order:
//   - context codes resolve through the directory; unknown codes fail with
//     an invalid-context error, and under strict resolution a context the
//     actor neither belongs to nor holds a send capability on is treated the
//     same way;
//   - non-collaborative groups require the tag-management capability on the
//     group's parent, and refuse new group conversations outright;
//   - participants of the targeted conversation are always included, even
//     when otherwise invisible to the actor (continuity exception);
//   - the actor is excluded from the result unless the sole resolved
//     recipient is the actor and exactly one raw token was supplied.
func ResolveRecipients(req *Request, conv *models.Conversation) ([]models.User, error) {
	prior := make(map[string]bool)
	if conv != nil {
		for _, p := range conv.Participants {
			prior[p] = true
		}
	}

	seen := make(map[string]bool)
	var out []models.User
	add := func(u models.User) {
		if !seen[u.ID] {
			seen[u.ID] = true
			out = append(out, u)
		}
	}

	for _, tok := range req.RawRecipients {
		if _, _, isCode := directory.ParseCode(tok); isCode {
			ctx, err := directory.Lookup(tok)
			if err != nil {
				return nil, ErrInvalidContext(tok)
			}
			// strict senders may only expand contexts they can address: their
			// own memberships, or contexts granting them a send capability
			if req.Strict && !ctx.IsMember(req.Actor) && !ctx.GrantsRight(req.Actor, directory.RightSendMessages) {
				return nil, ErrInvalidContext(tok)
			}
			if !directory.Collaborative(ctx) {
				if !ctx.GrantsRight(req.Actor, directory.RightManageTags) {
					return nil, ErrInsufficientPermissions()
				}
				if req.GroupConversation && !req.BulkMessage && conv == nil {
					return nil, ErrGroupConversationNotAllowed()
				}
			}
			for _, id := range ctx.MemberIDs() {
				u, err := directory.LookupUser(id)
				if err != nil {
					continue
				}
				add(u)
			}
			continue
		}

		u, err := directory.LookupUser(tok)
		if err != nil {
			continue
		}
		if prior[u.ID] {
			add(u)
			continue
		}
		if req.Strict {
			actor, aerr := directory.LookupUser(req.Actor)
			if aerr != nil || !directory.Visible(actor, u) {
				continue
			}
		}
		add(u)
	}

	// explicit self-message: one token resolving to exactly the actor
	if len(out) == 1 && out[0].ID == req.Actor && len(req.RawRecipients) == 1 {
		return out, nil
	}
	filtered := out[:0]
	for _, u := range out {
		if u.ID != req.Actor {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}
