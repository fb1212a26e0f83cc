package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"hackathonhub.shikanime.studio/internal/hackathon"
)

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Describe(ctx context.Context, url string) string {
	return m.Called(ctx, url).String(0)
}

func (m *mockEnricher) InferTags(ctx context.Context, description string) []string {
	return m.Called(ctx, description).Get(0).([]string)
}

const topcoderPayload = `[
  {
    "id": "30012345",
    "name": "Build an AI Assistant",
    "description": "Create an assistant for developers.",
    "overview": {"totalPrizes": 2500},
    "startDate": "2024-01-05T10:00:00.000Z",
    "endDate": "2024-02-01T23:59:00.000Z",
    "tags": ["AI", "Python"],
    "status": "Active"
  },
  {
    "id": "30012346",
    "name": "Design Sprint",
    "description": "A UI challenge.",
    "startDate": "2024-03-01T00:00:00.000Z",
    "endDate": "2024-03-10T00:00:00.000Z",
    "tags": [],
    "status": "Completed"
  },
  {"name": "no id"}
]`

func TestParseTopcoder(t *testing.T) {
	enr := new(mockEnricher)
	enr.On("InferTags", mock.Anything, "A UI challenge.").Return([]string{"design"}).Once()

	records, err := ParseTopcoder(context.Background(), []byte(topcoderPayload), Env{Enricher: enr})
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "tc-30012345", first.ID)
	assert.Equal(t, "Build an AI Assistant", first.Title)
	assert.Equal(t, "2500", first.TotalPrize)
	assert.Equal(t, "2024-01-05", first.StartDate)
	assert.Equal(t, "2024-02-01", first.EndDate)
	assert.Equal(t, "https://topcoder.com/challenges/30012345", first.RegistrationURL)
	assert.Equal(t, []string{"AI", "Python"}, first.Tags)
	assert.Equal(t, hackathon.Status("active"), first.Status)
	assert.Equal(t, hackathon.TypeOnline, first.Type)
	assert.Empty(t, first.ImageURL)

	second := records[1]
	assert.Equal(t, "0", second.TotalPrize)
	assert.Equal(t, []string{"design"}, second.Tags)
	assert.Equal(t, hackathon.Status("completed"), second.Status)

	enr.AssertExpectations(t)
	enr.AssertNotCalled(t, "InferTags", mock.Anything, "Create an assistant for developers.")
	enr.AssertNotCalled(t, "Describe", mock.Anything, mock.Anything)
}

func TestParseTopcoderVerbatimTagsSkipEnrichment(t *testing.T) {
	enr := new(mockEnricher)
	payload := `[{"id":"1","description":"d","tags":["Blockchain","Web3"],"status":"OPEN"},
	             {"id":"2","description":"d","tags":["Go"],"status":"open"}]`

	records, err := ParseTopcoder(context.Background(), []byte(payload), Env{Enricher: enr})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Blockchain", "Web3"}, records[0].Tags)
	assert.Equal(t, []string{"Go"}, records[1].Tags)
	enr.AssertNotCalled(t, "InferTags", mock.Anything, mock.Anything)
}

const devpostPayload = `{
  "hackathons": [
    {
      "id": 67,
      "title": "Green Hack",
      "url": "https://green.devpost.com/",
      "thumbnail_url": "//d112y698adiu2z.cloudfront.net/photos/green.png",
      "submission_period_dates": "Jan 5 - 20, 2024",
      "prize_amount": "$<span data-currency-value>10,000</span>",
      "organization_name": "Green Org",
      "displayed_location": {"location": "online"},
      "themes": [{"id": 1, "name": "Sustainability"}, {"id": 2, "name": "IoT"}],
      "open_state": "Open"
    },
    {
      "id": 68,
      "title": "City Jam",
      "url": "https://cityjam.devpost.com/",
      "submission_period_dates": "Dec 15, 2023 - Jan 20, 2024",
      "prize_amount": "no prizes",
      "organization_name": "City",
      "displayed_location": {"location": "Paris, France"},
      "themes": [],
      "open_state": "upcoming"
    }
  ]
}`

func TestParseDevpost(t *testing.T) {
	enr := new(mockEnricher)
	enr.On("Describe", mock.Anything, "https://green.devpost.com/").Return("A green hackathon.").Once()
	enr.On("Describe", mock.Anything, "https://cityjam.devpost.com/").Return("A city jam.").Once()
	enr.On("InferTags", mock.Anything, "A city jam.").Return([]string{"smart-city"}).Once()

	records, err := ParseDevpost(context.Background(), []byte(devpostPayload), Env{Enricher: enr, Concurrency: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)

	green := records[0]
	assert.Equal(t, "dp-67", green.ID)
	assert.Equal(t, "2024-01-05", green.StartDate)
	assert.Equal(t, "2024-01-20", green.EndDate)
	assert.Equal(t, "10000", green.TotalPrize)
	assert.Equal(t, "https://d112y698adiu2z.cloudfront.net/photos/green.png", green.ImageURL)
	assert.Equal(t, "A green hackathon.", green.Description)
	assert.Equal(t, []string{"Sustainability", "IoT"}, green.Tags)
	assert.Equal(t, "Online", green.Location)
	assert.Equal(t, hackathon.TypeOnline, green.Type)
	assert.Equal(t, hackathon.StatusOpen, green.Status)
	assert.Equal(t, "Green Org", green.Organizer)

	city := records[1]
	assert.Equal(t, "dp-68", city.ID)
	assert.Equal(t, "2023-12-15", city.StartDate)
	assert.Equal(t, "2024-01-20", city.EndDate)
	assert.Equal(t, "0", city.TotalPrize)
	assert.Empty(t, city.ImageURL)
	assert.Equal(t, "Paris, France", city.Location)
	assert.Equal(t, hackathon.TypeInPerson, city.Type)
	assert.Equal(t, []string{"smart-city"}, city.Tags)

	enr.AssertExpectations(t)
	enr.AssertNotCalled(t, "InferTags", mock.Anything, "A green hackathon.")
}

func TestParseDevpostBadPeriodKeepsRecord(t *testing.T) {
	payload := `{"hackathons":[{"id":1,"url":"https://x.devpost.com/","submission_period_dates":"Coming soon","prize_amount":""}]}`

	records, err := ParseDevpost(context.Background(), []byte(payload), Env{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].StartDate)
	assert.Empty(t, records[0].EndDate)
	assert.Equal(t, "0", records[0].TotalPrize)
	assert.Equal(t, []string{}, records[0].Tags)
	assert.Equal(t, "Online", records[0].Location)
}

func TestParseQuira(t *testing.T) {
	payload := `{
	  "active_quests": [
	    {
	      "creator_quest_id": 9,
	      "creator_quest_name": "Ship a CLI",
	      "creator_quest_started_at": "2024-04-01T12:00:00Z",
	      "creator_quest_ends_at": 1714521600,
	      "reward_amount": 500,
	      "badge_url": "/badges/9.svg",
	      "type_label": "Open Source"
	    },
	    {
	      "creator_quest_id": 10,
	      "creator_quest_name": "Docs Quest"
	    }
	  ]
	}`

	records, err := ParseQuira(context.Background(), []byte(payload), Env{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	q := records[0]
	assert.Equal(t, "quira-9", q.ID)
	assert.Equal(t, "Ship a CLI", q.Title)
	assert.Equal(t, "Ship a CLI", q.Description)
	assert.Equal(t, "500", q.TotalPrize)
	assert.Equal(t, "2024-04-01", q.StartDate)
	assert.Equal(t, "2024-05-01", q.EndDate)
	assert.Equal(t, "https://quira.sh/badges/9.svg", q.ImageURL)
	assert.Equal(t, "https://quira.sh/quests/creator/submissions?questId=9", q.RegistrationURL)
	assert.Equal(t, []string{"Open Source"}, q.Tags)
	assert.Equal(t, hackathon.StatusOngoing, q.Status)
	assert.Equal(t, "Quira", q.Organizer)

	assert.Equal(t, "0", records[1].TotalPrize)
	assert.Empty(t, records[1].ImageURL)
	assert.Equal(t, []string{}, records[1].Tags)
}

func TestParseQuiraMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"missing key", `{"quests": []}`},
		{"not an array", `{"active_quests": {"creator_quest_id": 1}}`},
		{"null", `{"active_quests": null}`},
		{"invalid json", `{"active_quests": [`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseQuira(context.Background(), []byte(tt.payload), Env{})
			assert.ErrorIs(t, err, ErrMalformedSourceData)
			assert.NotNil(t, records)
			assert.Empty(t, records)
		})
	}
}

func TestRegistry(t *testing.T) {
	r := Default()
	assert.Equal(t, []hackathon.Provider{
		hackathon.ProviderDevpost, hackathon.ProviderQuira, hackathon.ProviderTopcoder,
	}, r.Providers())
	assert.True(t, r.Has(hackathon.ProviderQuira))
	assert.False(t, r.Has("eventbrite"))

	records, err := r.Parse(context.Background(), "eventbrite", []byte(`[]`), Env{})
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.Empty(t, records)

	records, err = r.Parse(context.Background(), hackathon.ProviderTopcoder,
		[]byte(`[{"id":"5","description":"","tags":[],"status":"Open"}]`), Env{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{}, records[0].Tags)
}
