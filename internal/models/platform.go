package models

// Platform identifies the alert source an email came from.
type Platform string

const (
	// PlatformLinkedIn is the professional-network dialect: alerts carry bare
	// job ids that are deep-scraped later.
	PlatformLinkedIn Platform = "linkedin"
	// PlatformIndeed is the job-board dialect: digest alerts carry enough text
	// to be parsed immediately.
	PlatformIndeed Platform = "indeed"
)

func (p Platform) Valid() bool {
	return p == PlatformLinkedIn || p == PlatformIndeed
}
