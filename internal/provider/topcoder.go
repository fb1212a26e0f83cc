package provider

import (
	"context"
	"strings"

	"hackathonhub.shikanime.studio/internal/agent"
	"hackathonhub.shikanime.studio/internal/hackathon"
	"hackathonhub.shikanime.studio/internal/normalize"
)

const topcoderChallengeURL = "https://topcoder.com/challenges/"

// ParseTopcoder reads the Topcoder challenges API: a top-level array of
// challenges. Challenges without tags get inferred ones.
func ParseTopcoder(ctx context.Context, payload []byte, env Env) ([]hackathon.Record, error) {
	items, err := listAt(payload, hackathon.ProviderTopcoder, "")
	if err != nil {
		return []hackathon.Record{}, err
	}
	records := make([]hackathon.Record, 0, len(items))
	for _, item := range items {
		id := nativeID(ctx, hackathon.ProviderTopcoder, item, "id")
		if id == "" {
			continue
		}
		records = append(records, hackathon.Record{
			ID:              "tc-" + id,
			Title:           item.Get("name").String(),
			Description:     item.Get("description").String(),
			TotalPrize:      stringOr(item.Get("overview.totalPrizes"), "0"),
			StartDate:       normalize.CalendarDate(item.Get("startDate").String()),
			EndDate:         normalize.CalendarDate(item.Get("endDate").String()),
			RegistrationURL: topcoderChallengeURL + id,
			Organizer:       "Topcoder",
			Location:        "Online",
			Type:            hackathon.TypeOnline,
			Tags:            stringList(item.Get("tags"), ""),
			Status:          hackathon.Status(strings.ToLower(item.Get("status").String())),
		})
	}
	enrichEach(ctx, env, records, func(ctx context.Context, enr agent.Enricher, r *hackathon.Record) {
		if len(r.Tags) == 0 {
			r.Tags = enr.InferTags(ctx, r.Description)
		}
	})
	return records, nil
}
