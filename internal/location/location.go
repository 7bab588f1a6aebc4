// Package location turns free-text job locations into a structured value.
package location

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Location is the normalized form of a free-text location string.
// When Remote is false at least one of Country, City or Postcode is expected
// to be set for the value to be useful, but Parse does not enforce it.
type Location struct {
	Country  *string `json:"country"`
	City     *string `json:"city"`
	Postcode *string `json:"postcode"`
	Remote   bool    `json:"remote"`
}

func (l Location) String() string {
	var parts []string
	if l.City != nil {
		parts = append(parts, *l.City)
	}
	if l.Postcode != nil {
		parts = append(parts, *l.Postcode)
	}
	if l.Country != nil {
		parts = append(parts, *l.Country)
	}
	out := strings.Join(parts, ", ")
	if l.Remote {
		if out == "" {
			return "Remote"
		}
		return "Remote (" + out + ")"
	}
	return out
}

const (
	unitedKingdom = "United Kingdom"
	unitedStates  = "United States"
)

var remoteIndicators = []string{"remote", "work from home", "wfh", "hybrid", "anywhere", "global"}

// Tried in order, first match wins.
var postcodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b[A-Z]{1,2}[0-9][A-Z0-9]?\s*[0-9][A-Z]{2}\b`),
	regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`),
	regexp.MustCompile(`(?i)\b[A-Z]\d[A-Z]\s?\d[A-Z]\d\b`),
	regexp.MustCompile(`\b\d{4,6}\b`),
	regexp.MustCompile(`(?i)\b[A-Z]{1,3}-?\d{3,6}\b`),
}

var separators = regexp.MustCompile(`[,;|\-]+`)

// ukSubdivisions identify the country but may also be the city or region,
// so they are left in the working string.
var ukSubdivisions = map[string]bool{
	"england":          true,
	"scotland":         true,
	"wales":            true,
	"northern ireland": true,
}

var countryAliases = map[string]string{
	"uk":                       unitedKingdom,
	"united kingdom":           unitedKingdom,
	"britain":                  unitedKingdom,
	"great britain":            unitedKingdom,
	"england":                  unitedKingdom,
	"scotland":                 unitedKingdom,
	"wales":                    unitedKingdom,
	"northern ireland":         unitedKingdom,
	"usa":                      unitedStates,
	"united states":            unitedStates,
	"united states of america": unitedStates,
	"america":                  unitedStates,
	"us":                       unitedStates,
}

var otherCountries = []string{
	"ireland", "canada", "australia", "new zealand", "germany", "france", "spain",
	"portugal", "italy", "netherlands", "belgium", "luxembourg", "switzerland",
	"austria", "denmark", "sweden", "norway", "finland", "iceland", "poland",
	"czech republic", "hungary", "romania", "greece", "turkey", "israel",
	"india", "singapore", "japan", "china", "hong kong", "south korea",
	"united arab emirates", "south africa", "brazil", "mexico", "argentina",
}

type countryMatcher struct {
	alias     string
	canonical string
	pattern   *regexp.Regexp
}

var countryMatchers = buildCountryMatchers()

func buildCountryMatchers() []countryMatcher {
	aliases := make(map[string]string, len(countryAliases)+len(otherCountries))
	for alias, canonical := range countryAliases {
		aliases[alias] = canonical
	}
	for _, name := range otherCountries {
		aliases[name] = cases.Title(language.English).String(name)
	}

	matchers := make([]countryMatcher, 0, len(aliases))
	for alias, canonical := range aliases {
		matchers = append(matchers, countryMatcher{
			alias:     alias,
			canonical: canonical,
			pattern:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(alias) + `\b`),
		})
	}
	// Longest alias first so "united kingdom" wins over "uk".
	sort.Slice(matchers, func(i, j int) bool {
		if len(matchers[i].alias) != len(matchers[j].alias) {
			return len(matchers[i].alias) > len(matchers[j].alias)
		}
		return matchers[i].alias < matchers[j].alias
	})
	return matchers
}

// Parse normalizes raw into a Location. Fields that cannot be determined are
// left nil; Parse never fails.
func Parse(raw string) Location {
	working := strings.TrimSpace(raw)
	if working == "" {
		return Location{}
	}

	if isRemote(working) {
		loc := Location{Remote: true}
		if country, _, ok := matchCountry(working); ok {
			loc.Country = &country
		}
		return loc
	}

	var loc Location
	for _, pattern := range postcodePatterns {
		idx := pattern.FindStringIndex(working)
		if idx == nil {
			continue
		}
		postcode := strings.ToUpper(strings.TrimSpace(working[idx[0]:idx[1]]))
		loc.Postcode = &postcode
		working = working[:idx[0]] + " " + working[idx[1]:]
		break
	}

	if country, matcher, ok := matchCountry(working); ok {
		loc.Country = &country
		if !ukSubdivisions[matcher.alias] {
			working = matcher.pattern.ReplaceAllString(working, " ")
			if trimSeparators(working) == "" {
				return loc
			}
		}
	}

	if city := firstSegment(working); city != "" {
		city = cases.Title(language.English).String(city)
		loc.City = &city
	}
	return loc
}

func isRemote(value string) bool {
	lower := strings.ToLower(value)
	for _, indicator := range remoteIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func matchCountry(value string) (string, countryMatcher, bool) {
	for _, m := range countryMatchers {
		if m.pattern.MatchString(value) {
			return m.canonical, m, true
		}
	}
	return "", countryMatcher{}, false
}

func firstSegment(value string) string {
	value = separators.ReplaceAllString(value, ",")
	for _, segment := range strings.Split(value, ",") {
		segment = strings.Join(strings.Fields(segment), " ")
		if segment != "" {
			return segment
		}
	}
	return ""
}

func trimSeparators(value string) string {
	return strings.Trim(value, " \t\r\n,;|-")
}
