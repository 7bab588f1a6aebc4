package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/justsurfingit/eis/internal/models"
	"github.com/justsurfingit/eis/internal/parser"
)

const (
	linkedInGuestURL = "https://www.linkedin.com/jobs-guest/jobs/api/jobPosting/%s"
	linkedInViewURL  = "https://www.linkedin.com/jobs/view/%s"
)

// LinkedIn scrapes the public guest posting endpoint, which needs no session.
type LinkedIn struct {
	fetcher   Fetcher
	extractor Extractor
	log       zerolog.Logger
}

func NewLinkedIn(fetcher Fetcher, extractor Extractor, log zerolog.Logger) *LinkedIn {
	return &LinkedIn{fetcher: fetcher, extractor: extractor, log: log.With().Str("scraper", "linkedin").Logger()}
}

func (l *LinkedIn) Platform() models.Platform {
	return models.PlatformLinkedIn
}

func (l *LinkedIn) Scrape(ctx context.Context, externalID string) (*Details, error) {
	doc, _, err := fetchDocument(ctx, l.fetcher, fmt.Sprintf(linkedInGuestURL, externalID))
	if err != nil {
		return nil, err
	}

	d, err := parseLinkedInPosting(doc)
	if errors.Is(err, ErrNoDetails) {
		d, err = fallback(ctx, l.extractor, doc, l.log)
	}
	if err != nil {
		return nil, fmt.Errorf("linkedin job %s: %w", externalID, err)
	}
	d.URL = fmt.Sprintf(linkedInViewURL, externalID)
	return d, nil
}

func parseLinkedInPosting(doc *goquery.Document) (*Details, error) {
	if posting := jobPosting(doc); posting != nil {
		return detailsFromJobPosting(posting), nil
	}

	d := &Details{
		Title:    cleanText(doc.Find(".top-card-layout__title, .topcard__title").First().Text()),
		Company:  cleanText(doc.Find("a.topcard__org-name-link, .topcard__org-name-link").First().Text()),
		Location: cleanText(doc.Find(".topcard__flavor--bullet").First().Text()),
	}
	if d.Company == "" {
		d.Company = cleanText(doc.Find(".topcard__flavor").First().Text())
	}
	if d.Title == "" {
		return nil, ErrNoDetails
	}

	if desc := doc.Find(".show-more-less-html__markup, .description__text").First(); desc.Length() > 0 {
		d.Description = multilineText(desc)
	}
	if salary := cleanText(doc.Find(".compensation__salary, .salary").First().Text()); salary != "" {
		s := parser.ParseSalary(salary)
		d.SalaryMin, d.SalaryMax = s.Min, s.Max
	}
	if strings.EqualFold(d.Location, "remote") {
		d.Location = "Remote"
	}
	return d, nil
}
