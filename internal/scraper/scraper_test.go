package scraper

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/eis/internal/models"
)

type fakeFetcher struct {
	pages     map[string]string
	err       error
	requested []string
}

func (f *fakeFetcher) Get(_ context.Context, target string) ([]byte, string, error) {
	f.requested = append(f.requested, target)
	if f.err != nil {
		return nil, target, f.err
	}
	page, ok := f.pages[target]
	if !ok {
		return nil, target, errors.New("unexpected url " + target)
	}
	return []byte(page), target, nil
}

type fakeExtractor struct {
	details *Details
	input   string
}

func (e *fakeExtractor) ExtractJobDetails(_ context.Context, text string) (*Details, error) {
	e.input = text
	return e.details, nil
}

const linkedInFragment = `<section class="top-card-layout">
  <h2 class="top-card-layout__title topcard__title">Backend Engineer</h2>
  <h4 class="top-card-layout__second-subline">
    <span class="topcard__flavor"><a class="topcard__org-name-link" href="#"> Acme Ltd </a></span>
    <span class="topcard__flavor topcard__flavor--bullet">London, England, United Kingdom</span>
  </h4>
  <div class="salary compensation__salary">£40,000.00/yr - £50,000.00/yr</div>
</section>
<div class="show-more-less-html__markup"><p>Build APIs in Go.</p><ul><li>Postgres</li><li>Kubernetes</li></ul></div>`

const indeedPage = `<html><head>
<script type="application/ld+json">{
  "@context": "https://schema.org/",
  "@type": "JobPosting",
  "title": "Stability Chemist",
  "description": "&lt;p&gt;Manage the stability programme.&lt;/p&gt;&lt;p&gt;Shifts apply.&lt;/p&gt;",
  "hiringOrganization": {"@type": "Organization", "name": "GSK"},
  "jobLocation": {"@type": "Place", "address": {"addressLocality": "Ware", "addressCountry": "GB"}},
  "baseSalary": {"@type": "MonetaryAmount", "currency": "GBP",
    "value": {"@type": "QuantitativeValue", "minValue": 35000, "maxValue": 42000, "unitText": "YEAR"}},
  "validThrough": "2024-06-30T23:59"
}</script></head><body><h1>ignored</h1></body></html>`

func TestLinkedInScrape(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://www.linkedin.com/jobs-guest/jobs/api/jobPosting/3849201123": linkedInFragment,
	}}
	d, err := NewLinkedIn(f, nil, zerolog.Nop()).Scrape(context.Background(), "3849201123")
	require.NoError(t, err)

	assert.Equal(t, "Backend Engineer", d.Title)
	assert.Equal(t, "Acme Ltd", d.Company)
	assert.Equal(t, "London, England, United Kingdom", d.Location)
	assert.Equal(t, "Build APIs in Go.\nPostgres\nKubernetes", d.Description)
	require.NotNil(t, d.SalaryMin)
	assert.Equal(t, 40000.0, *d.SalaryMin)
	assert.Equal(t, 50000.0, *d.SalaryMax)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/3849201123", d.URL)
}

func TestIndeedScrape_JSONLD(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://uk.indeed.com/viewjob?jk=4d5e6f7a8b9c0d1e": indeedPage,
	}}
	d, err := NewIndeed(f, nil, "", zerolog.Nop()).Scrape(context.Background(), "4d5e6f7a8b9c0d1e")
	require.NoError(t, err)

	assert.Equal(t, "Stability Chemist", d.Title)
	assert.Equal(t, "GSK", d.Company)
	assert.Equal(t, "Ware, GB", d.Location)
	assert.Equal(t, "Manage the stability programme.\nShifts apply.", d.Description)
	require.NotNil(t, d.SalaryMin)
	assert.Equal(t, 35000.0, *d.SalaryMin)
	assert.Equal(t, 42000.0, *d.SalaryMax)
	require.NotNil(t, d.Deadline)
	assert.Equal(t, time.Date(2024, 6, 30, 23, 59, 0, 0, time.UTC), *d.Deadline)
	assert.Equal(t, "https://uk.indeed.com/viewjob?jk=4d5e6f7a8b9c0d1e", d.URL)
}

func TestIndeedScrape_MarkupFallback(t *testing.T) {
	page := `<html><body>
<h1 class="jobsearch-JobInfoHeader-title">QC Chemist - job post</h1>
<div data-company-name="true">Pharma-Bio Solutions</div>
<div data-testid="inlineHeader-companyLocation">Cambridge</div>
<div id="salaryInfoAndJobType"><span>From £32,000 a year</span></div>
<div id="jobDescriptionText"><p>Release testing.</p></div>
</body></html>`
	f := &fakeFetcher{pages: map[string]string{"https://www.indeed.com/viewjob?jk=abc": page}}
	d, err := NewIndeed(f, nil, "https://www.indeed.com/", zerolog.Nop()).Scrape(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, "QC Chemist", d.Title)
	assert.Equal(t, "Pharma-Bio Solutions", d.Company)
	assert.Equal(t, "Cambridge", d.Location)
	assert.Equal(t, "Release testing.", d.Description)
	require.NotNil(t, d.SalaryMin)
	assert.Equal(t, 32000.0, *d.SalaryMin)
}

func TestScrape_UsesExtractorWhenMarkupUnknown(t *testing.T) {
	page := `<html><body><main>Senior Chemist at Croda in Snaith. Salary £45,000.</main><script>var x=1;</script></body></html>`
	f := &fakeFetcher{pages: map[string]string{"https://uk.indeed.com/viewjob?jk=zz": page}}
	ex := &fakeExtractor{details: &Details{Title: "Senior Chemist", Company: "Croda"}}

	d, err := NewIndeed(f, ex, "", zerolog.Nop()).Scrape(context.Background(), "zz")
	require.NoError(t, err)
	assert.Equal(t, "Senior Chemist", d.Title)
	assert.Equal(t, "https://uk.indeed.com/viewjob?jk=zz", d.URL)
	assert.Equal(t, "Senior Chemist at Croda in Snaith. Salary £45,000.", ex.input)
}

func TestScrape_NoDetailsWithoutExtractor(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://www.linkedin.com/jobs-guest/jobs/api/jobPosting/1": "<html><body>Sign in</body></html>",
	}}
	_, err := NewLinkedIn(f, nil, zerolog.Nop()).Scrape(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNoDetails)
}

func TestScrape_FetchError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("http 429")}
	_, err := NewLinkedIn(f, nil, zerolog.Nop()).Scrape(context.Background(), "1")
	assert.ErrorContains(t, err, "http 429")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&fakeFetcher{}, nil, "", zerolog.Nop())

	s, err := r.For(models.PlatformLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, models.PlatformLinkedIn, s.Platform())

	s, err = r.For(models.PlatformIndeed)
	require.NoError(t, err)
	assert.Equal(t, models.PlatformIndeed, s.Platform())

	_, err = r.For("glassdoor")
	assert.ErrorIs(t, err, ErrNoScraper)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "short", n: 10, want: "short"},
		{in: "abcdef", n: 3, want: "abc"},
		{in: "a£b", n: 2, want: "a"},
		{in: "a£b", n: 3, want: "a£"},
		{in: "日本", n: 4, want: "日"},
		{in: "£", n: 1, want: ""},
	}
	for _, tt := range tests {
		got := Truncate(tt.in, tt.n)
		assert.Equal(t, tt.want, got, "Truncate(%q, %d)", tt.in, tt.n)
		assert.True(t, utf8.ValidString(got))
	}
}
