package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// ErrNoToken means the cached token file is missing; run the interactive
// authorization first.
var ErrNoToken = errors.New("no cached gmail token")

// GmailAuth loads the OAuth app credentials and the user's cached token.
type GmailAuth struct {
	CredentialsFile string
	TokenFile       string
}

func (a GmailAuth) config() (*oauth2.Config, error) {
	b, err := os.ReadFile(a.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret file: %w", err)
	}
	// Read-only access is all ingestion needs.
	config, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret file: %w", err)
	}
	return config, nil
}

// Client returns an HTTP client authorized with the cached token. It never
// prompts; a missing token yields ErrNoToken.
func (a GmailAuth) Client(ctx context.Context) (*http.Client, error) {
	config, err := a.config()
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(a.TokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoToken, a.TokenFile)
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}
	return config.Client(ctx, tok), nil
}

// Authorize runs the copy-paste OAuth flow: it prints the consent URL to out,
// reads the code from in and caches the token.
func (a GmailAuth) Authorize(ctx context.Context, in io.Reader, out io.Writer) error {
	config, err := a.config()
	if err != nil {
		return err
	}
	tok, err := getTokenFromWeb(ctx, config, in, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Saving credential file to: %s\n", a.TokenFile)
	return saveToken(a.TokenFile, tok)
}

func getTokenFromWeb(ctx context.Context, config *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open this link to authorize Gmail access:\n%v\n\n", authURL)
	fmt.Fprint(out, "Paste the code here: ")

	var authCode string
	if _, err := fmt.Fscan(in, &authCode); err != nil {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("cache oauth token: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encode oauth token: %w", err)
	}
	return nil
}
