package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/justsurfingit/eis/internal/database"
	"github.com/justsurfingit/eis/internal/models"
)

// ErrUnmatchedRecipient means no stored user owns the address an alert was
// sent to.
var ErrUnmatchedRecipient = errors.New("no user matches recipient")

// UnmatchedPolicy decides what happens to an alert whose recipient is not a
// known user.
type UnmatchedPolicy string

const (
	// UnmatchedFail counts the message as failed and logs an error.
	UnmatchedFail UnmatchedPolicy = "fail"
	// UnmatchedSkip ignores the message quietly.
	UnmatchedSkip UnmatchedPolicy = "skip"
)

func ParseUnmatchedPolicy(s string) (UnmatchedPolicy, error) {
	switch p := UnmatchedPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return UnmatchedFail, nil
	case UnmatchedFail, UnmatchedSkip:
		return p, nil
	default:
		return "", fmt.Errorf("unknown unmatched sender policy %q (want fail or skip)", s)
	}
}

type UserFinder interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// MatcherService resolves which user an alert email belongs to.
type MatcherService struct {
	users UserFinder
}

func NewMatcherService(users UserFinder) *MatcherService {
	return &MatcherService{users: users}
}

// ResolveOwner matches the To header's addresses exactly (case included)
// against stored users. When the header is empty or unparseable the
// mailbox that was listed stands in for it.
func (s *MatcherService) ResolveOwner(ctx context.Context, toHeader string, mailbox models.User) (*models.User, error) {
	candidates := recipientAddresses(toHeader)
	if len(candidates) == 0 {
		candidates = []string{mailbox.Email}
	}

	for _, addr := range candidates {
		user, err := s.users.FindUserByEmail(ctx, addr)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("look up user %s: %w", addr, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnmatchedRecipient, strings.Join(candidates, ", "))
}

// recipientAddresses parses the header the way mail clients do; values that
// fail to parse as a list are tried as a single address.
func recipientAddresses(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if list, err := mail.ParseAddressList(header); err == nil {
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, a.Address)
		}
		return out
	}
	if addr, err := mail.ParseAddress(header); err == nil {
		return []string{addr.Address}
	}
	return nil
}
