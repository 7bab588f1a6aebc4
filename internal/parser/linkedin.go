package parser

import "regexp"

var linkedInJobPattern = regexp.MustCompile(`(?i)(?:/comm)?/jobs/view/(\d+)`)

// ExtractLinkedInJobIDs returns the job ids referenced by /jobs/view/<id>
// links in body, first-seen order, without duplicates.
func ExtractLinkedInJobIDs(body string) []string {
	matches := linkedInJobPattern.FindAllStringSubmatch(body, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return dedupe(ids)
}
