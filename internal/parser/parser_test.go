package parser

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/eis/internal/models"
)

func loadDigest(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("testdata/indeed_digest.txt")
	require.NoError(t, err)
	return string(b)
}

func f(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		body   string
		want   models.Platform
	}{
		{"linkedin sender", "LinkedIn Job Alerts <jobalerts-noreply@linkedin.com>", "", models.PlatformLinkedIn},
		{"indeed sender", "Indeed <alert@indeed.com>", "", models.PlatformIndeed},
		{"indeed via body", "alerts@example.org", "view at https://uk.indeed.com/rc/clk/dl?jk=1", models.PlatformIndeed},
		{"linkedin via body", "someone@example.org", "https://www.linkedin.com/comm/jobs/view/123", models.PlatformLinkedIn},
		{"sender wins over body", "jobs-noreply@linkedin.com", "see indeed.com too", models.PlatformLinkedIn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.sender, tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Unrecognized(t *testing.T) {
	_, err := Classify("newsletter@example.org", "nothing to see")
	var target *UnrecognizedPlatformError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "newsletter@example.org", target.Sender)
}

func TestExtractLinkedInJobIDs(t *testing.T) {
	body := `Your job alert for golang developer
Backend Engineer - Acme
View job: https://www.linkedin.com/comm/jobs/view/3849201123/?trackingId=abc
Platform Engineer - Initech
View job: https://www.linkedin.com/jobs/view/3849207777
Again: https://www.linkedin.com/comm/jobs/view/3849201123/?refId=zzz
Site Reliability Engineer
https://WWW.LINKEDIN.COM/COMM/JOBS/VIEW/3849209999/`

	assert.Equal(t, []string{"3849201123", "3849207777", "3849209999"}, ExtractLinkedInJobIDs(body))
}

func TestExtractLinkedInJobIDs_BareAndCommLinks(t *testing.T) {
	body := "https://www.linkedin.com/jobs/view/123456789\n" +
		"https://linkedin.com/comm/jobs/view/987654321\n" +
		"https://www.linkedin.com/jobs/view/123456789"
	assert.Equal(t, []string{"123456789", "987654321"}, ExtractLinkedInJobIDs(body))
}

func TestResolveJobID_TrackingLinkWithJobKey(t *testing.T) {
	fr := &fakeResolver{results: []string{"unused"}}
	r := NewIndeedResolver(fr, 0, zerolog.Nop())

	id, err := r.ResolveJobID(context.Background(), "https://uk.indeed.com/pagead/clk/dl?jk=xyz789ghi012&tk=1")
	require.NoError(t, err)
	assert.Equal(t, "xyz789ghi012", id)
	assert.Zero(t, fr.calls)
}

func TestExtractLinkedInJobIDs_None(t *testing.T) {
	assert.Empty(t, ExtractLinkedInJobIDs("https://www.linkedin.com/feed/"))
}

func TestParseIndeedDigest(t *testing.T) {
	postings := ParseIndeedDigest(loadDigest(t))
	require.Len(t, postings, 23)

	first := postings[0]
	assert.Equal(t, "Laboratory Chemist", first.Title)
	assert.Equal(t, "Thermulon", first.Company)
	assert.Equal(t, "London", first.Location)
	assert.Equal(t, Salary{Min: f(30000), Max: f(37000)}, first.Salary)
	assert.Equal(t, "Support the formulation team with routine analysis of aerogel samples.", first.Description)
	assert.Equal(t, "https://uk.indeed.com/pagead/clk/dl?mo=r&ad=-6NYlbfkN0ABcdEf1&jsa=4821&tk=1hq0a2b3c4d5e6f7", first.URL)

	for _, p := range postings {
		assert.NotEmpty(t, p.Title)
		assert.NotEmpty(t, p.URL)
		assert.NotContains(t, p.Description, "Easily apply")
		assert.NotContains(t, p.Description, "Just posted")
	}
}

func TestParseIndeedDigest_BlockDetails(t *testing.T) {
	postings := ParseIndeedDigest(loadDigest(t))
	byTitle := make(map[string]IndeedPosting, len(postings))
	for _, p := range postings {
		byTitle[p.Title] = p
	}

	qc := byTitle["QC Chemist"]
	assert.Equal(t, "Pharma-Bio Solutions", qc.Company)
	assert.Equal(t, "Cambridge", qc.Location)
	assert.Equal(t, Salary{Min: f(32000), Max: f(32000)}, qc.Salary)
	assert.Equal(t, "Hybrid remote\nRelease testing of finished products and raw materials.", qc.Description)

	chemistry := byTitle["Chemistry Teacher"]
	assert.Equal(t, "Harris Academy - Croydon", chemistry.Company)
	assert.Equal(t, "London", chemistry.Location)

	senior := byTitle["Senior Formulation Scientist"]
	assert.Nil(t, senior.Salary.Min)
	assert.Nil(t, senior.Salary.Max)
	assert.Equal(t, "Lead formulation projects for personal care customers.", senior.Description)

	tech := byTitle["Laboratory Technician"]
	assert.Equal(t, Salary{Min: f(11.5), Max: f(12.75)}, tech.Salary)
	assert.Equal(t, "Sample preparation and instrument maintenance.\nShift work Monday to Friday.", tech.Description)

	env := byTitle["Environmental Chemist"]
	assert.Equal(t, "Analysis of soil and water samples to UKAS standards.", env.Description)
}

func TestParseIndeedDigest_SkipsBlocksWithoutURL(t *testing.T) {
	body := `Indeed header

Chemist
Acme - Leeds
No link in this one

Chemist II
Acme - York
https://uk.indeed.com/rc/clk/dl?jk=abc123

footer one

footer two`

	postings := ParseIndeedDigest(body)
	require.Len(t, postings, 1)
	assert.Equal(t, "Chemist II", postings[0].Title)
	assert.Equal(t, "York", postings[0].Location)
}

func TestParseIndeedDigest_TooShort(t *testing.T) {
	assert.Empty(t, ParseIndeedDigest(""))
	assert.Empty(t, ParseIndeedDigest("just a header\n\nand a footer"))
}

func TestParseSalary(t *testing.T) {
	tests := []struct {
		line string
		want Salary
	}{
		{"£30,000 - £37,000 a year", Salary{Min: f(30000), Max: f(37000)}},
		{"$18.50 an hour", Salary{Min: f(18.5), Max: f(18.5)}},
		{"From £28,000 a year", Salary{Min: f(28000), Max: f(28000)}},
		{"Up to €45,000 a year", Salary{Min: f(45000), Max: f(45000)}},
		{"£40k - £50k per annum", Salary{Min: f(40000), Max: f(50000)}},
		{"£50,000 to £60,000 a year", Salary{Min: f(50000), Max: f(60000)}},
		{"Competitive", Salary{}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSalary(tt.line))
		})
	}
}

type fakeResolver struct {
	results []string
	errs    []error
	calls   int
}

func (r *fakeResolver) Resolve(_ context.Context, _ string) (string, error) {
	i := r.calls
	r.calls++
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	if i < len(r.results) {
		return r.results[i], err
	}
	return r.results[len(r.results)-1], err
}

func TestResolveJobID_DirectJobKey(t *testing.T) {
	fr := &fakeResolver{results: []string{"unused"}}
	r := NewIndeedResolver(fr, 0, zerolog.Nop())

	id, err := r.ResolveJobID(context.Background(), "https://uk.indeed.com/rc/clk/dl?jk=8f1c2a3b4d5e6f70&from=ja")
	require.NoError(t, err)
	assert.Equal(t, "8f1c2a3b4d5e6f70", id)
	assert.Equal(t, 0, fr.calls)
}

func TestResolveJobID_FollowsRedirect(t *testing.T) {
	fr := &fakeResolver{results: []string{"https://uk.indeed.com/viewjob?jk=abcdef0123456789&from=ja"}}
	r := NewIndeedResolver(fr, 0, zerolog.Nop())

	id, err := r.ResolveJobID(context.Background(), "https://uk.indeed.com/pagead/clk/dl?mo=r&ad=-6NYlbfkN0&jsa=1")
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456789", id)
	assert.Equal(t, 1, fr.calls)
}

func TestResolveJobID_RetriesUntilJobPage(t *testing.T) {
	fr := &fakeResolver{
		results: []string{
			"",
			"https://uk.indeed.com/pagead/clk?mo=r",
			"https://uk.indeed.com/viewjob?jk=feedface00000001",
		},
		errs: []error{errors.New("connection reset")},
	}
	r := NewIndeedResolver(fr, 0, zerolog.Nop())

	id, err := r.ResolveJobID(context.Background(), "https://uk.indeed.com/pagead/clk/dl?mo=r&ad=x")
	require.NoError(t, err)
	assert.Equal(t, "feedface00000001", id)
	assert.Equal(t, 3, fr.calls)
}

func TestResolveJobID_GivesUp(t *testing.T) {
	fr := &fakeResolver{results: []string{"https://uk.indeed.com/captcha"}}
	r := NewIndeedResolver(fr, 0, zerolog.Nop())

	_, err := r.ResolveJobID(context.Background(), "https://uk.indeed.com/pagead/clk/dl?mo=r&ad=x")
	require.ErrorIs(t, err, ErrTooManyAttempts)
	assert.Equal(t, MaxResolveAttempts, fr.calls)
}

func TestResolveJobID_RejectsUnknownLink(t *testing.T) {
	fr := &fakeResolver{results: []string{"unused"}}
	r := NewIndeedResolver(fr, 0, zerolog.Nop())

	_, err := r.ResolveJobID(context.Background(), "https://uk.indeed.com/rc/clk/dl?from=ja")
	require.Error(t, err)
	assert.Equal(t, 0, fr.calls)
}

func TestExtractJobIDs_DigestMix(t *testing.T) {
	fr := &fakeResolver{results: []string{"https://uk.indeed.com/viewjob?jk=resolved00000001"}}
	r := NewIndeedResolver(fr, 0, zerolog.Nop())

	ids := r.ExtractJobIDs(context.Background(), loadDigest(t))
	// Every mo= link resolves to the same key, so it appears once, in the
	// position of the first mo= link.
	require.Len(t, ids, 16)
	assert.Equal(t, "resolved00000001", ids[0])
	assert.Equal(t, "8f1c2a3b4d5e6f70", ids[1])
	assert.Equal(t, 8, fr.calls)
}

func TestExtractJobIDs_DropsUnresolved(t *testing.T) {
	fr := &fakeResolver{results: []string{"https://uk.indeed.com/blocked"}}
	r := NewIndeedResolver(fr, 0, zerolog.Nop())

	body := `https://uk.indeed.com/pagead/clk/dl?mo=r&ad=bad
https://uk.indeed.com/rc/clk/dl?jk=good000000000001`
	assert.Equal(t, []string{"good000000000001"}, r.ExtractJobIDs(context.Background(), body))
}

func TestResolveJobID_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fr := &fakeResolver{results: []string{"https://uk.indeed.com/captcha"}}
	r := NewIndeedResolver(fr, 0, zerolog.Nop())

	_, err := r.ResolveJobID(ctx, "https://uk.indeed.com/pagead/clk/dl?mo=r&ad=x")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fr.calls)
}
