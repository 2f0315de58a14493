package chat

import "strings"

// ApplyPage prepends a page of older history to existing. Items whose id is
// already present are dropped, so applying the same page twice is a no-op.
// Existing messages keep their order and are never removed.
func ApplyPage(existing []Message, page Page) ([]Message, bool) {
	seen := make(map[string]struct{}, len(existing)+len(page.Items))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}

	older := make([]Message, 0, len(page.Items))
	for _, m := range page.Items {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		older = append(older, m)
	}

	merged := make([]Message, 0, len(older)+len(existing))
	merged = append(merged, older...)
	merged = append(merged, existing...)
	return merged, page.HasMore()
}

// ApplyStreamChunk folds one stream chunk into existing.
//
// A chunk with a new id becomes a new message at the end of the list. When
// that chunk is the server echo of the user's prompt, the optimistic local
// copy identified by localOptimisticID is removed first. An assistant chunk
// whose id is already present appends its content to that message. A user
// echo whose id is already present, because history delivered it first, only
// removes the optimistic copy.
func ApplyStreamChunk(existing []Message, chunk Chunk, localOptimisticID string) []Message {
	for i := range existing {
		if existing[i].ID != chunk.MessageID {
			continue
		}
		if chunk.Role == RoleUser {
			if chunk.MessageID == localOptimisticID {
				return existing
			}
			return dropMessage(existing, localOptimisticID)
		}
		out := make([]Message, len(existing))
		copy(out, existing)
		out[i].Content = existing[i].Content + chunk.Content
		return out
	}

	out := existing
	if chunk.Role == RoleUser {
		out = dropMessage(existing, localOptimisticID)
	}
	return append(out[:len(out):len(out)], Message{
		ID:                chunk.MessageID,
		Role:              chunk.Role,
		Content:           chunk.Content,
		CreatedAt:         chunk.CreatedAt,
		PreviousMessageID: chunk.PreviousMessageID,
		Source:            SourceAPI,
	})
}

// ReconcileOptimistic removes the optimistic user message localOptimisticID
// once page holds its server copy: the newest user message of the page with
// the same text. The page must be the newest page of history.
func ReconcileOptimistic(existing []Message, page Page, localOptimisticID string) []Message {
	if localOptimisticID == "" {
		return existing
	}
	var local *Message
	for i := range existing {
		if existing[i].ID == localOptimisticID {
			local = &existing[i]
			break
		}
	}
	if local == nil {
		return existing
	}
	for i := len(page.Items) - 1; i >= 0; i-- {
		m := page.Items[i]
		if m.Role != RoleUser {
			continue
		}
		if m.ID != localOptimisticID && strings.TrimSpace(m.Content) == strings.TrimSpace(local.Content) {
			return dropMessage(existing, localOptimisticID)
		}
		break
	}
	return existing
}

// dropMessage returns a copy of msgs without the message id. An empty id or
// one that is not present leaves msgs as is.
func dropMessage(msgs []Message, id string) []Message {
	if id == "" {
		return msgs
	}
	for i := range msgs {
		if msgs[i].ID != id {
			continue
		}
		out := make([]Message, 0, len(msgs)-1)
		out = append(out, msgs[:i]...)
		return append(out, msgs[i+1:]...)
	}
	return msgs
}
