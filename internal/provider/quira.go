package provider

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"
	"hackathonhub.shikanime.studio/internal/hackathon"
	"hackathonhub.shikanime.studio/internal/normalize"
)

const (
	quiraBaseURL       = "https://quira.sh"
	quiraSubmissionURL = quiraBaseURL + "/quests/creator/submissions?questId="
)

// ParseQuira reads Quira's {"active_quests": [...]}. Quira only lists
// quests that are running, so every record is ongoing.
func ParseQuira(ctx context.Context, payload []byte, _ Env) ([]hackathon.Record, error) {
	items, err := listAt(payload, hackathon.ProviderQuira, "active_quests")
	if err != nil {
		return []hackathon.Record{}, err
	}
	records := make([]hackathon.Record, 0, len(items))
	for _, item := range items {
		id := nativeID(ctx, hackathon.ProviderQuira, item, "creator_quest_id")
		if id == "" {
			continue
		}
		name := item.Get("creator_quest_name").String()
		tags := []string{}
		if label := item.Get("type_label").String(); label != "" {
			tags = append(tags, label)
		}
		records = append(records, hackathon.Record{
			ID:              "quira-" + id,
			Title:           name,
			Description:     name,
			TotalPrize:      stringOr(item.Get("reward_amount"), "0"),
			StartDate:       quiraDate(item.Get("creator_quest_started_at")),
			EndDate:         quiraDate(item.Get("creator_quest_ends_at")),
			ImageURL:        normalize.AbsoluteHTTPS(item.Get("badge_url").String(), quiraBaseURL),
			RegistrationURL: quiraSubmissionURL + url.QueryEscape(id),
			Organizer:       "Quira",
			Location:        "Online",
			Type:            hackathon.TypeOnline,
			Tags:            tags,
			Status:          hackathon.StatusOngoing,
		})
	}
	return records, nil
}

// quiraDate accepts ISO strings and epoch numbers.
func quiraDate(r gjson.Result) string {
	if r.Type == gjson.Number {
		return normalize.EpochDate(r.Num)
	}
	return normalize.CalendarDate(r.String())
}
