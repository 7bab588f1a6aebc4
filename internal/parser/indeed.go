package parser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// The digest layout has a fixed number of chrome blocks around the postings.
const (
	indeedHeaderBlocks = 1
	indeedFooterBlocks = 2
)

// MaxResolveAttempts caps how many times a tracking redirect is followed
// before the id is given up on.
const MaxResolveAttempts = 100

// ErrTooManyAttempts is returned when a tracking URL never reaches a
// viewjob?jk= page within MaxResolveAttempts.
var ErrTooManyAttempts = errors.New("redirect did not reach a job page")

// Salary is a parsed salary range. A single figure sets both ends.
type Salary struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// IndeedPosting is one job block from a digest alert.
type IndeedPosting struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Salary      Salary `json:"salary"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

var (
	blankLinePattern = regexp.MustCompile(`\n[ \t]*\n`)
	trackingPattern  = regexp.MustCompile(`https?://[^\s/]+/(?:pagead|rc)/clk/dl\?[^\s<>"')\]]+`)
	salaryPattern    = regexp.MustCompile(`(?i)(?:[£$€]\s?\d|\d[\d,.]*k?\s+(?:a|an|per)\s+(?:year|annum|month|week|day|hour)\b)`)
	salaryPeriod     = regexp.MustCompile(`(?i)\s*\b(?:a|an|per)\s+(?:year|annum|month|week|day|hour)\b.*$`)
	salaryPrefix     = regexp.MustCompile(`(?i)^\s*(?:from|up to|starting at)\s+`)
	rangeDash        = regexp.MustCompile(`\s*(?:-|–|—|\bto\b)\s*`)
	salaryDigits     = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?\s*[kK]?`)
)

type lineKind int

const (
	lineDescription lineKind = iota
	lineSalary
	lineURL
	lineChrome
)

// Lines the digest decorates every posting with. "Hybrid remote" is kept on
// purpose; it carries the work arrangement.
var chromeLines = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^easily apply(?: to this job)?$`),
	regexp.MustCompile(`(?i)^responsive employer$`),
	regexp.MustCompile(`(?i)^urgently hiring$`),
	regexp.MustCompile(`(?i)^actively hiring$`),
	regexp.MustCompile(`(?i)^just posted$`),
	regexp.MustCompile(`(?i)^today$`),
	regexp.MustCompile(`(?i)^new$`),
	regexp.MustCompile(`(?i)^(?:posted\s+)?\d+\+?\s+days?\s+ago$`),
}

func classifyLine(line string, haveSalary bool) lineKind {
	if trackingPattern.MatchString(line) {
		return lineURL
	}
	if !haveSalary && salaryPattern.MatchString(line) {
		return lineSalary
	}
	for _, p := range chromeLines {
		if p.MatchString(line) {
			return lineChrome
		}
	}
	return lineDescription
}

// ParseIndeedDigest splits a plain-text digest body into postings. Blocks
// without a title or a tracking URL are skipped.
func ParseIndeedDigest(body string) []IndeedPosting {
	blocks := splitBlocks(body)
	if len(blocks) <= indeedHeaderBlocks+indeedFooterBlocks {
		return nil
	}
	blocks = blocks[indeedHeaderBlocks : len(blocks)-indeedFooterBlocks]

	postings := make([]IndeedPosting, 0, len(blocks))
	for _, block := range blocks {
		if p, ok := parseBlock(block); ok {
			postings = append(postings, p)
		}
	}
	return postings
}

func splitBlocks(body string) [][]string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var blocks [][]string
	for _, raw := range blankLinePattern.Split(body, -1) {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			blocks = append(blocks, lines)
		}
	}
	return blocks
}

func parseBlock(lines []string) (IndeedPosting, bool) {
	if len(lines) < 2 {
		return IndeedPosting{}, false
	}

	p := IndeedPosting{Title: lines[0]}
	if p.Title == "" || trackingPattern.MatchString(p.Title) {
		return IndeedPosting{}, false
	}
	p.Company, p.Location = splitCompanyLocation(lines[1])

	var description []string
	haveSalary := false
	for _, line := range lines[2:] {
		switch classifyLine(line, haveSalary) {
		case lineURL:
			p.URL = trackingPattern.FindString(line)
		case lineSalary:
			p.Salary = ParseSalary(line)
			haveSalary = true
		case lineChrome:
		default:
			description = append(description, line)
		}
	}
	if p.URL == "" {
		return IndeedPosting{}, false
	}
	p.Description = strings.Join(description, "\n")
	return p, true
}

// splitCompanyLocation splits "Company - Location" on the last separator, as
// company names may contain dashes themselves.
func splitCompanyLocation(line string) (string, string) {
	idx := strings.LastIndex(line, " - ")
	if idx < 0 {
		return strings.TrimSpace(line), ""
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+3:])
}

// ParseSalary reads a salary line such as "£30,000 - £37,000 a year" or
// "From $18.50 an hour". Unparseable figures leave the range empty.
func ParseSalary(line string) Salary {
	text := salaryPeriod.ReplaceAllString(line, "")
	text = salaryPrefix.ReplaceAllString(text, "")

	var values []float64
	for _, part := range rangeDash.Split(text, -1) {
		if v, ok := parseAmount(part); ok {
			values = append(values, v)
		}
		if len(values) == 2 {
			break
		}
	}

	switch len(values) {
	case 0:
		return Salary{}
	case 1:
		v := values[0]
		return Salary{Min: &v, Max: &v}
	default:
		lo, hi := values[0], values[1]
		return Salary{Min: &lo, Max: &hi}
	}
}

func parseAmount(part string) (float64, bool) {
	m := salaryDigits.FindString(part)
	if m == "" {
		return 0, false
	}
	m = strings.ReplaceAll(strings.TrimSpace(m), ",", "")
	multiplier := 1.0
	if strings.HasSuffix(strings.ToLower(m), "k") {
		multiplier = 1000
		m = strings.TrimSpace(m[:len(m)-1])
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v * multiplier, true
}

// Resolver follows an HTTP redirect chain and reports the final URL.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// IndeedResolver turns tracking links found in digest bodies into job keys.
type IndeedResolver struct {
	resolver    Resolver
	backoff     time.Duration
	maxAttempts int
	log         zerolog.Logger
}

func NewIndeedResolver(resolver Resolver, backoff time.Duration, log zerolog.Logger) *IndeedResolver {
	return &IndeedResolver{
		resolver:    resolver,
		backoff:     backoff,
		maxAttempts: MaxResolveAttempts,
		log:         log,
	}
}

// ExtractJobIDs resolves every tracking link in body. Links that fail to
// resolve are logged and left out; the rest keep first-seen order.
func (r *IndeedResolver) ExtractJobIDs(ctx context.Context, body string) []string {
	links := dedupe(trackingPattern.FindAllString(body, -1))
	ids := make([]string, 0, len(links))
	for _, link := range links {
		id, err := r.ResolveJobID(ctx, link)
		if err != nil {
			r.log.Warn().Err(err).Str("url", link).Msg("could not resolve indeed job id")
			continue
		}
		ids = append(ids, id)
	}
	return dedupe(ids)
}

// ResolveJobID returns the job key for a single tracking link. Links that
// already carry jk= are answered without any network call.
func (r *IndeedResolver) ResolveJobID(ctx context.Context, link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse tracking url: %w", err)
	}
	q := u.Query()
	if jk := q.Get("jk"); jk != "" {
		return jk, nil
	}
	if !q.Has("mo") && !q.Has("ad") {
		return "", fmt.Errorf("tracking url %q has neither jk nor mo/ad", link)
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		final, err := r.resolver.Resolve(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
		} else if strings.Contains(final, "viewjob?jk=") {
			return jobKey(final)
		}

		if attempt == r.maxAttempts {
			break
		}
		if err := sleep(ctx, r.backoff); err != nil {
			return "", err
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w after %d attempts: %w", ErrTooManyAttempts, r.maxAttempts, lastErr)
	}
	return "", fmt.Errorf("%w after %d attempts", ErrTooManyAttempts, r.maxAttempts)
}

func jobKey(viewURL string) (string, error) {
	u, err := url.Parse(viewURL)
	if err != nil {
		return "", fmt.Errorf("parse job url: %w", err)
	}
	jk := u.Query().Get("jk")
	if jk == "" {
		return "", fmt.Errorf("job url %q has no jk", viewURL)
	}
	return jk, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
