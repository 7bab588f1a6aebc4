// Package scraper fetches full posting details for job ids that alert emails
// only referenced.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/justsurfingit/eis/internal/models"
)

var (
	// ErrNoScraper is returned by Registry.For for a platform without a
	// deep scraper.
	ErrNoScraper = errors.New("no scraper for platform")
	// ErrNoDetails means the page was fetched but carried no recognizable
	// posting.
	ErrNoDetails = errors.New("no posting details found")
)

// Details is what a deep scrape learns about a posting.
type Details struct {
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	SalaryMin   *float64   `json:"salary_min"`
	SalaryMax   *float64   `json:"salary_max"`
	URL         string     `json:"url"`
	Deadline    *time.Time `json:"deadline"`
}

type Scraper interface {
	Platform() models.Platform
	Scrape(ctx context.Context, externalID string) (*Details, error)
}

// Fetcher retrieves a page body and the URL it was served from.
type Fetcher interface {
	Get(ctx context.Context, target string) ([]byte, string, error)
}

// Extractor pulls posting details out of unstructured page text. It backs up
// the markup parsers when a page layout is not recognized.
type Extractor interface {
	ExtractJobDetails(ctx context.Context, pageText string) (*Details, error)
}

// Registry maps a platform to its deep scraper.
type Registry map[models.Platform]Scraper

// NewRegistry wires the LinkedIn and Indeed scrapers to one fetcher.
// extractor may be nil.
func NewRegistry(fetcher Fetcher, extractor Extractor, indeedBaseURL string, log zerolog.Logger) Registry {
	return Registry{
		models.PlatformLinkedIn: NewLinkedIn(fetcher, extractor, log),
		models.PlatformIndeed:   NewIndeed(fetcher, extractor, indeedBaseURL, log),
	}
}

func (r Registry) For(platform models.Platform) (Scraper, error) {
	s, ok := r[platform]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoScraper, platform)
	}
	return s, nil
}
