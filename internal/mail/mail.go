// Package mail lists and fetches job-alert messages from a mailbox.
package mail

import (
	"context"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"
)

// Query selects alert messages addressed to one recipient.
type Query struct {
	Recipient    string
	Senders      []string
	LookbackDays int
	InboxOnly    bool
}

// String renders q in Gmail search syntax.
func (q Query) String() string {
	var parts []string
	if q.Recipient != "" {
		parts = append(parts, "to:"+q.Recipient)
	}
	if len(q.Senders) > 0 {
		parts = append(parts, "from:("+strings.Join(q.Senders, " OR ")+")")
	}
	if q.LookbackDays > 0 {
		parts = append(parts, fmt.Sprintf("newer_than:%dd", q.LookbackDays))
	}
	if q.InboxOnly {
		parts = append(parts, "in:inbox")
	}
	return strings.Join(parts, " ")
}

// Message is a fetched alert email with its body already decoded.
type Message struct {
	ID      string
	Subject string
	From    string
	To      string
	Date    time.Time
	Body    string
}

// Transport is the mailbox the orchestrator reads from.
type Transport interface {
	ListMessageIDs(ctx context.Context, q Query) ([]string, error)
	FetchMessage(ctx context.Context, id string) (*Message, error)
}

// NormalizeAddress reduces a header value such as `"Jobs" <Jobs@Example.com>`
// to the bare address. Case is preserved; callers decide how to compare.
func NormalizeAddress(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if addr, err := netmail.ParseAddress(header); err == nil {
		return addr.Address
	}
	if list, err := netmail.ParseAddressList(header); err == nil && len(list) > 0 {
		return list[0].Address
	}
	if start, end := strings.LastIndex(header, "<"), strings.LastIndex(header, ">"); start >= 0 && end > start {
		return strings.TrimSpace(header[start+1 : end])
	}
	return header
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
}

// ParseDate accepts the Date header shapes seen from alert senders. ok is
// false when none matched.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := netmail.ParseDate(value); err == nil {
		return t, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
