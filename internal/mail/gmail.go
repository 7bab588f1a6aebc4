package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	listPageSize  = 100
	retryAttempts = 3
	retrySleep    = time.Second
)

// Gmail reads alert messages through the Gmail API as the authorized user.
type Gmail struct {
	svc        *gmail.Service
	log        zerolog.Logger
	attempts   int
	retrySleep time.Duration
}

// NewGmail builds the transport from an OAuth-authorized HTTP client.
func NewGmail(ctx context.Context, client *http.Client, log zerolog.Logger, opts ...option.ClientOption) (*Gmail, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Gmail{svc: svc, log: log, attempts: retryAttempts, retrySleep: retrySleep}, nil
}

// Profile returns the mailbox address of the authorized user.
func (g *Gmail) Profile(ctx context.Context) (string, error) {
	var profile *gmail.Profile
	err := g.retry(ctx, func() error {
		var e error
		profile, e = g.svc.Users.GetProfile("me").Context(ctx).Do()
		return e
	})
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// ListMessageIDs follows every result page for q.
func (g *Gmail) ListMessageIDs(ctx context.Context, q Query) ([]string, error) {
	query := q.String()
	var ids []string
	pageToken := ""
	for {
		var resp *gmail.ListMessagesResponse
		err := g.retry(ctx, func() error {
			call := g.svc.Users.Messages.List("me").Q(query).MaxResults(listPageSize)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var e error
			resp, e = call.Context(ctx).Do()
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("list messages %q: %w", query, err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	g.log.Debug().Str("query", query).Int("count", len(ids)).Msg("listed messages")
	return ids, nil
}

func (g *Gmail) FetchMessage(ctx context.Context, id string) (*Message, error) {
	var msg *gmail.Message
	err := g.retry(ctx, func() error {
		var e error
		msg, e = g.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("fetch message %s: %w", id, err)
	}
	return toMessage(msg), nil
}

func toMessage(msg *gmail.Message) *Message {
	headers := headerMap(msg)
	out := &Message{
		ID:      msg.Id,
		Subject: headers["subject"],
		From:    headers["from"],
		To:      headers["to"],
		Body:    messageBody(msg),
	}
	if t, ok := ParseDate(headers["date"]); ok {
		out.Date = t
	} else if msg.InternalDate > 0 {
		out.Date = time.UnixMilli(msg.InternalDate).UTC()
	}
	return out
}

// retry runs f with exponential backoff. Client errors other than rate
// limiting are returned at once.
func (g *Gmail) retry(ctx context.Context, f func() error) error {
	sleep := g.retrySleep
	var err error
	for i := 0; i < g.attempts; i++ {
		if err = f(); err == nil {
			return nil
		}
		if !isRetryable(err) || i == g.attempts-1 {
			break
		}

		g.log.Warn().Err(err).Dur("backoff", sleep).Msg("gmail api error, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		sleep *= 2
	}
	return err
}

func isRetryable(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusTooManyRequests || gErr.Code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
