// Package hackathon holds the canonical records every provider is normalized into.
package hackathon

import (
	"strings"
	"time"
)

// Provider names an external listing source. It is also the source_name
// stored with every record ingested from it.
type Provider string

const (
	ProviderTopcoder Provider = "topcoder"
	ProviderDevpost  Provider = "devpost"
	ProviderQuira    Provider = "quira"
)

// ParseProvider lower-cases and trims a provider name.
func ParseProvider(s string) Provider {
	return Provider(strings.ToLower(strings.TrimSpace(s)))
}

type Type string

const (
	TypeOnline   Type = "online"
	TypeHybrid   Type = "hybrid"
	TypeInPerson Type = "in-person"
)

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusOngoing  Status = "ongoing"
	StatusEnded    Status = "ended"
	StatusActive   Status = "active"
	StatusOpen     Status = "open"
)

// OngoingStatuses are treated as synonyms of "ongoing" by filters and stats.
var OngoingStatuses = []Status{StatusOngoing, StatusActive, StatusOpen}

// IsOngoing reports whether s belongs to the ongoing synonym group.
func (s Status) IsOngoing() bool {
	for _, o := range OngoingStatuses {
		if s == o {
			return true
		}
	}
	return false
}

// Record is the canonical hackathon shape. Dates are YYYY-MM-DD or empty.
type Record struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	TotalPrize      string    `json:"totalPrize"`
	StartDate       string    `json:"startDate"`
	EndDate         string    `json:"endDate"`
	RegistrationURL string    `json:"registrationUrl"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	Organizer       string    `json:"organizer"`
	Location        string    `json:"location"`
	Type            Type      `json:"type"`
	Tags            []string  `json:"tags"`
	Status          Status    `json:"status"`
	SourceName      string    `json:"sourceName,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitzero"`
}

// Source describes where a provider's listings are fetched from.
type Source struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	Provider        Provider   `json:"provider"`
	IsActive        bool       `json:"isActive"`
	LastFetched     *time.Time `json:"lastFetched"`
	HackathonsCount int        `json:"hackathonsCount"`
	CreatedBy       string     `json:"createdBy,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// SourcePatch carries the fields of a Source to change; nil means unchanged.
type SourcePatch struct {
	Name     *string `json:"name,omitempty" yaml:"name,omitempty"`
	URL      *string `json:"url,omitempty" yaml:"url,omitempty"`
	IsActive *bool   `json:"isActive,omitempty" yaml:"isActive,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SourcePatch) Empty() bool {
	return p.Name == nil && p.URL == nil && p.IsActive == nil
}

// Filters narrows a hackathon listing. Zero values mean "no filter".
type Filters struct {
	Search string
	Status Status
	Type   Type
	Limit  int
	Offset int
}

// Stats summarizes stored records. TotalPrize is a best-effort sum.
type Stats struct {
	Total      int   `json:"total"`
	Upcoming   int   `json:"upcoming"`
	Ongoing    int   `json:"ongoing"`
	Ended      int   `json:"ended"`
	TotalPrize int64 `json:"totalPrize"`
}
