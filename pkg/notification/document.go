package notification

import "strings"

// Document flattens the notification into the field namespace that routing
// and escalation rule conditions evaluate against. Both the domain names
// (category, priority) and their rule-facing aliases (type, severity) are
// exposed so imported rule sets can use either.
func (n *Notification) Document() map[string]any {
	doc := map[string]any{
		"id":               n.ID,
		"recipient_id":     n.RecipientID,
		"title":            n.Title,
		"message":          n.Message,
		"category":         string(n.Category),
		"type":             string(n.Category),
		"priority":         string(n.Priority),
		"severity":         string(n.Priority),
		"acknowledged":     n.Acknowledged,
		"escalation_level": n.EscalationLevel,
		"status":           string(n.Status),
		"created_at":       n.CreatedAt,
		"failed_attempts":  n.FailedAttempts(),
	}
	if n.Payload != nil {
		doc["payload"] = n.Payload
	}
	if n.ExpiresAt != nil {
		doc["expires_at"] = *n.ExpiresAt
	}
	return doc
}

// LookupField resolves a dot-path like "payload.location.region" against a
// document. A missing segment returns (nil, false); rule conditions treat
// that as a non-match.
func LookupField(doc map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
