package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/justsurfingit/eis/internal/models"
	"github.com/justsurfingit/eis/internal/parser"
)

// DefaultIndeedBaseURL is the country site alerts link to when none is
// configured.
const DefaultIndeedBaseURL = "https://uk.indeed.com"

// Indeed scrapes a viewjob page, preferring its JSON-LD JobPosting block.
type Indeed struct {
	fetcher   Fetcher
	extractor Extractor
	baseURL   string
	log       zerolog.Logger
}

func NewIndeed(fetcher Fetcher, extractor Extractor, baseURL string, log zerolog.Logger) *Indeed {
	if baseURL == "" {
		baseURL = DefaultIndeedBaseURL
	}
	return &Indeed{
		fetcher:   fetcher,
		extractor: extractor,
		baseURL:   strings.TrimRight(baseURL, "/"),
		log:       log.With().Str("scraper", "indeed").Logger(),
	}
}

func (i *Indeed) Platform() models.Platform {
	return models.PlatformIndeed
}

func (i *Indeed) viewURL(jk string) string {
	return i.baseURL + "/viewjob?jk=" + url.QueryEscape(jk)
}

func (i *Indeed) Scrape(ctx context.Context, externalID string) (*Details, error) {
	target := i.viewURL(externalID)
	doc, _, err := fetchDocument(ctx, i.fetcher, target)
	if err != nil {
		return nil, err
	}

	d, err := parseIndeedPosting(doc)
	if errors.Is(err, ErrNoDetails) {
		d, err = fallback(ctx, i.extractor, doc, i.log)
	}
	if err != nil {
		return nil, fmt.Errorf("indeed job %s: %w", externalID, err)
	}
	d.URL = target
	return d, nil
}

func parseIndeedPosting(doc *goquery.Document) (*Details, error) {
	if posting := jobPosting(doc); posting != nil {
		return detailsFromJobPosting(posting), nil
	}

	d := &Details{
		Title:    cleanText(doc.Find("h1.jobsearch-JobInfoHeader-title, [data-testid='jobsearch-JobInfoHeader-title']").First().Text()),
		Company:  cleanText(doc.Find("[data-company-name], [data-testid='inlineHeader-companyName']").First().Text()),
		Location: cleanText(doc.Find("[data-testid='inlineHeader-companyLocation'], [data-testid='job-location']").First().Text()),
	}
	if d.Title == "" {
		return nil, ErrNoDetails
	}
	// The header title carries a " - job post" suffix for screen readers.
	d.Title = strings.TrimSuffix(d.Title, " - job post")

	if desc := doc.Find("#jobDescriptionText").First(); desc.Length() > 0 {
		d.Description = multilineText(desc)
	}
	if salary := cleanText(doc.Find("#salaryInfoAndJobType span, [data-testid='attribute_snippet_testid']").First().Text()); salary != "" {
		s := parser.ParseSalary(salary)
		d.SalaryMin, d.SalaryMax = s.Min, s.Max
	}
	return d, nil
}
