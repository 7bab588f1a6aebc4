package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

const maxExtractorInput = 20000

func fetchDocument(ctx context.Context, fetcher Fetcher, target string) (*goquery.Document, string, error) {
	body, final, err := fetcher.Get(ctx, target)
	if err != nil {
		return nil, final, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, final, fmt.Errorf("parse %s: %w", final, err)
	}
	return doc, final, nil
}

// fallback asks the extractor when the markup parsers came back empty.
func fallback(ctx context.Context, extractor Extractor, doc *goquery.Document, log zerolog.Logger) (*Details, error) {
	if extractor == nil {
		return nil, ErrNoDetails
	}
	doc.Find("script, style, nav, footer").Remove()
	text := cleanText(doc.Text())
	if text == "" {
		return nil, ErrNoDetails
	}
	text = Truncate(text, maxExtractorInput)
	log.Debug().Int("chars", len(text)).Msg("falling back to llm extraction")
	d, err := extractor.ExtractJobDetails(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}
	if d == nil || d.Title == "" {
		return nil, ErrNoDetails
	}
	return d, nil
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func cleanText(value string) string {
	value = html.UnescapeString(value)
	return strings.Join(strings.Fields(value), " ")
}

// multilineText keeps paragraph breaks from HTML descriptions.
func multilineText(sel *goquery.Selection) string {
	sel.Find("br").ReplaceWithHtml("\n")
	sel.Find("p, li, div, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	var lines []string
	for _, line := range strings.Split(sel.Text(), "\n") {
		if line = cleanText(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func htmlFragmentText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.UnescapeString(fragment)))
	if err != nil {
		return cleanText(fragment)
	}
	return multilineText(doc.Selection)
}

var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05-0700",
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// jobPosting finds the first schema.org JobPosting in the page's JSON-LD
// blocks.
func jobPosting(doc *goquery.Document) map[string]any {
	var found map[string]any
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		data, err := decodeJSONLD(s.Text())
		if err != nil {
			return true
		}
		found = findJobPosting(data)
		return found == nil
	})
	return found
}

func decodeJSONLD(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "<!--")
	raw = strings.TrimSuffix(raw, "-->")
	raw = strings.ReplaceAll(raw, "\u2028", "")
	raw = strings.ReplaceAll(raw, "\u2029", "")

	var data any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &data); err != nil {
		return nil, err
	}
	return data, nil
}

func findJobPosting(data any) map[string]any {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if p := findJobPosting(item); p != nil {
				return p
			}
		}
	case map[string]any:
		if strings.EqualFold(stringValue(v["@type"]), "JobPosting") {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return findJobPosting(graph)
		}
	}
	return nil
}

func detailsFromJobPosting(v map[string]any) *Details {
	d := &Details{
		Title:       cleanText(stringValue(v["title"], v["name"])),
		Company:     cleanText(stringValue(mapValue(v["hiringOrganization"], "name"))),
		Location:    locationFromJSONLD(v["jobLocation"]),
		Description: htmlFragmentText(stringValue(v["description"])),
		URL:         stringValue(v["url"]),
	}
	if strings.EqualFold(stringValue(v["jobLocationType"]), "TELECOMMUTE") && d.Location == "" {
		d.Location = "Remote"
	}
	d.SalaryMin, d.SalaryMax = salaryFromJSONLD(v["baseSalary"])
	if ts, ok := parseDate(stringValue(v["validThrough"])); ok {
		d.Deadline = &ts
	}
	return d
}

func salaryFromJSONLD(value any) (*float64, *float64) {
	amount, ok := mapValue(value, "value").(map[string]any)
	if !ok {
		return nil, nil
	}
	if single, ok := numberValue(amount["value"]); ok {
		return &single, &single
	}
	lo, okLo := numberValue(amount["minValue"])
	hi, okHi := numberValue(amount["maxValue"])
	switch {
	case okLo && okHi:
		return &lo, &hi
	case okLo:
		return &lo, &lo
	case okHi:
		return &hi, &hi
	}
	return nil, nil
}

func locationFromJSONLD(value any) string {
	switch v := value.(type) {
	case []any:
		if len(v) > 0 {
			return locationFromJSONLD(v[0])
		}
	case map[string]any:
		if address, ok := v["address"].(map[string]any); ok {
			return joinAddress(address)
		}
		return joinAddress(v)
	case string:
		return v
	}
	return ""
}

func joinAddress(value map[string]any) string {
	var parts []string
	for _, key := range []string{"addressLocality", "addressRegion", "postalCode", "addressCountry"} {
		if part := stringValue(value[key]); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

func stringValue(values ...any) string {
	for _, value := range values {
		switch v := value.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
		case map[string]any:
			if name := stringValue(v["name"]); name != "" {
				return name
			}
		}
	}
	return ""
}

func numberValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func mapValue(value any, key string) any {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}
