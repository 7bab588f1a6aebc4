package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(s string) *string { return &s }

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Location
	}{
		{
			name:  "country only",
			input: "United Kingdom",
			want:  Location{Country: ptr("United Kingdom")},
		},
		{
			name:  "city and country alias",
			input: "London, UK",
			want:  Location{Country: ptr("United Kingdom"), City: ptr("London")},
		},
		{
			name:  "uk subdivision with postcode",
			input: "Manchester, England M1 1AA",
			want:  Location{Country: ptr("United Kingdom"), City: ptr("Manchester"), Postcode: ptr("M1 1AA")},
		},
		{
			name:  "remote with country",
			input: "Remote from the UK",
			want:  Location{Country: ptr("United Kingdom"), Remote: true},
		},
		{
			name:  "empty",
			input: "",
			want:  Location{},
		},
		{
			name:  "whitespace only",
			input: "   \t\n ",
			want:  Location{},
		},
		{
			name:  "us zip",
			input: "Austin, TX 78701, USA",
			want:  Location{Country: ptr("United States"), City: ptr("Austin"), Postcode: ptr("78701")},
		},
		{
			name:  "us zip plus four",
			input: "Seattle 98101-1234",
			want:  Location{City: ptr("Seattle"), Postcode: ptr("98101-1234")},
		},
		{
			name:  "canadian postal code",
			input: "Toronto, ON M5V 3L9, Canada",
			want:  Location{Country: ptr("Canada"), City: ptr("Toronto"), Postcode: ptr("M5V 3L9")},
		},
		{
			name:  "generic numeric postcode",
			input: "Berlin 10115 Germany",
			want:  Location{Country: ptr("Germany"), City: ptr("Berlin"), Postcode: ptr("10115")},
		},
		{
			name:  "longest alias wins",
			input: "Belfast, Northern Ireland",
			want:  Location{Country: ptr("United Kingdom"), City: ptr("Belfast")},
		},
		{
			name:  "remote without country",
			input: "Work from home",
			want:  Location{Remote: true},
		},
		{
			name:  "hybrid counts as remote and skips city",
			input: "Hybrid remote in Leeds, UK",
			want:  Location{Country: ptr("United Kingdom"), Remote: true},
		},
		{
			name:  "city is title cased",
			input: "bristol; somerset",
			want:  Location{City: ptr("Bristol")},
		},
		{
			name:  "accented city passes through",
			input: "Zürich, Switzerland",
			want:  Location{Country: ptr("Switzerland"), City: ptr("Zürich")},
		},
		{
			name:  "unknown text becomes city",
			input: "Somewhere",
			want:  Location{City: ptr("Somewhere")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestParse_SubdivisionIsKeptAsCity(t *testing.T) {
	got := Parse("Scotland")
	assert.Equal(t, ptr("United Kingdom"), got.Country)
	assert.Equal(t, ptr("Scotland"), got.City)
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "London, United Kingdom", Parse("London, UK").String())
	assert.Equal(t, "Remote (United Kingdom)", Parse("Remote from the UK").String())
	assert.Equal(t, "Remote", Parse("anywhere").String())
	assert.Equal(t, "", Parse("").String())
}
