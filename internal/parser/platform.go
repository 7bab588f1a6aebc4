// Package parser extracts job postings and platform job ids from alert email
// bodies.
package parser

import (
	"fmt"
	"strings"

	"github.com/justsurfingit/eis/internal/models"
)

// UnrecognizedPlatformError is returned by Classify when neither the sender
// nor the body carries a known platform marker.
type UnrecognizedPlatformError struct {
	Sender string
}

func (e *UnrecognizedPlatformError) Error() string {
	return fmt.Sprintf("unrecognized alert platform (sender %q)", e.Sender)
}

var platformMarkers = []struct {
	platform models.Platform
	sender   string
	body     []string
}{
	{models.PlatformLinkedIn, "linkedin.com", []string{"linkedin.com/"}},
	{models.PlatformIndeed, "indeed.", []string{"indeed.com", "indeedemail.com"}},
}

// Classify decides which platform an alert belongs to. The sender is checked
// before the body so a LinkedIn alert quoting an Indeed link stays LinkedIn.
func Classify(sender, body string) (models.Platform, error) {
	sender = strings.ToLower(sender)
	for _, m := range platformMarkers {
		if strings.Contains(sender, m.sender) {
			return m.platform, nil
		}
	}

	lowerBody := strings.ToLower(body)
	for _, m := range platformMarkers {
		for _, marker := range m.body {
			if strings.Contains(lowerBody, marker) {
				return m.platform, nil
			}
		}
	}
	return "", &UnrecognizedPlatformError{Sender: sender}
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
